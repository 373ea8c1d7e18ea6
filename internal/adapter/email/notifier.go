// Package email provides an SMTP-based notifier for billing notifications.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/fitcore/billing/internal/port/notifier"
)

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host       string
	Port       int
	From       string
	Password   string
	AdminEmail string
}

// Notifier sends email notifications via SMTP.
type Notifier struct {
	cfg SMTPConfig
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

// Name returns the notifier identifier.
func (n *Notifier) Name() string { return "email" }

// Send sends an email notification. Notifications without a recipient go to
// the configured admin address.
func (n *Notifier) Send(_ context.Context, note notifier.Notification) error {
	if n.cfg.Host == "" {
		return notifier.ErrNotConfigured
	}

	to := note.To
	if to == "" {
		to = n.cfg.AdminEmail
	}
	if to == "" {
		return notifier.ErrNotConfigured
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		n.cfg.From, to, note.Title, note.Message)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	return smtp.SendMail(addr, auth, n.cfg.From, []string{to}, []byte(msg))
}
