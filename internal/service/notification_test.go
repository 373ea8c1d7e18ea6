package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fitcore/billing/internal/port/notifier"
)

func TestNotificationsFanOut(t *testing.T) {
	a := &mockNotifier{}
	b := &mockNotifier{}
	svc := NewNotifications([]notifier.Notifier{a, b}, "https://app.test")

	svc.AdminAlert(context.Background(), "dispute opened", "tenant t-1")

	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("expected both notifiers to receive, got %d and %d", len(a.sent), len(b.sent))
	}
}

func TestNotificationsFailureDoesNotBlockOthers(t *testing.T) {
	failing := &mockNotifier{sendErr: errors.New("smtp down")}
	ok := &mockNotifier{}
	svc := NewNotifications([]notifier.Notifier{failing, ok}, "https://app.test")

	svc.Welcome(context.Background(), "owner@acme.test", "Acme", "acme")

	if len(ok.sent) != 1 {
		t.Fatalf("expected healthy notifier to receive despite sibling failure")
	}
}

func TestWelcomeIncludesLoginLink(t *testing.T) {
	n := &mockNotifier{}
	svc := NewNotifications([]notifier.Notifier{n}, "https://app.test")

	svc.Welcome(context.Background(), "owner@acme.test", "Acme", "acme")

	if len(n.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(n.sent))
	}
	note := n.sent[0]
	if note.To != "owner@acme.test" {
		t.Fatalf("welcome went to %q", note.To)
	}
	if want := "https://app.test/acme"; !strings.Contains(note.Message, want) {
		t.Fatalf("welcome message missing login link %q: %s", want, note.Message)
	}
}
