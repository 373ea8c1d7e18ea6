package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
	"github.com/fitcore/billing/internal/domain/fee"
	"github.com/fitcore/billing/internal/domain/plan"
	"github.com/fitcore/billing/internal/domain/subscription"
	"github.com/fitcore/billing/internal/domain/tenant"
	"github.com/fitcore/billing/internal/domain/user"
	"github.com/fitcore/billing/internal/port/notifier"
)

// mockStore is an in-memory database.Store with unique constraints on
// subdomain, billing email, and provider customer id, matching the
// postgres adapter's behavior.
type mockStore struct {
	mu      sync.Mutex
	tenants map[string]*tenant.Tenant             // by id
	users   map[string]*user.User                 // by email
	subs    map[string]*subscription.Subscription // current subscription by tenant id
	claimed map[string]bool                       // provider/eventID
	fees    []*fee.Record

	seq int

	// Error hooks. Set these to inject failures.
	claimErr        error
	updateSubErr    error
	createSubErr    error
	updateTenantErr error
	recordFeeErr    error

	// forceConflicts makes the next N ProvisionTenant calls fail with
	// ErrConflict regardless of state, simulating a lost race.
	// afterConflict, if set, runs once when a forced conflict fires; it may
	// mutate the store maps directly to install the race winner's rows.
	forceConflicts int
	afterConflict  func()

	provisionCalls int
	updateSubCalls int
	getSubCalls    int
}

func newMockStore() *mockStore {
	return &mockStore{
		tenants: map[string]*tenant.Tenant{},
		users:   map[string]*user.User{},
		subs:    map[string]*subscription.Subscription{},
		claimed: map[string]bool{},
	}
}

func (m *mockStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockStore) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) GetTenantByProviderCustomer(_ context.Context, provider, customerID string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		switch provider {
		case "instant":
			if t.InstantCustomerID == customerID && customerID != "" {
				cp := *t
				return &cp, nil
			}
		default:
			if t.CardCustomerID == customerID && customerID != "" {
				cp := *t
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetTenantBySubdomain(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Subdomain == subdomain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) UpdateTenant(_ context.Context, t *tenant.Tenant) error {
	if m.updateTenantErr != nil {
		return m.updateTenantErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *mockStore) ProvisionTenant(_ context.Context, req tenant.ProvisionRequest) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provisionCalls++

	if m.forceConflicts > 0 {
		m.forceConflicts--
		if m.afterConflict != nil {
			m.afterConflict()
			m.afterConflict = nil
		}
		return nil, domain.ErrConflict
	}
	for _, t := range m.tenants {
		if t.Subdomain == req.Subdomain || t.BillingEmail == req.BillingEmail {
			return nil, domain.ErrConflict
		}
	}
	if _, ok := m.users[req.BillingEmail]; ok {
		return nil, domain.ErrConflict
	}

	t := &tenant.Tenant{
		ID:           m.nextID("t"),
		Name:         req.Name,
		Subdomain:    req.Subdomain,
		Status:       tenant.StatusActive,
		PlanID:       req.PlanID,
		BillingEmail: req.BillingEmail,
		CreatedAt:    time.Now(),
	}
	if req.Provider == "instant" {
		t.InstantCustomerID = req.ProviderCustomerID
	} else {
		t.CardCustomerID = req.ProviderCustomerID
	}
	m.tenants[t.ID] = t

	m.users[req.BillingEmail] = &user.User{
		ID:           m.nextID("u"),
		TenantID:     t.ID,
		Email:        req.BillingEmail,
		Name:         req.OwnerName,
		Role:         user.RoleOwner,
		PasswordHash: req.OwnerPasswordHash,
	}

	m.subs[t.ID] = &subscription.Subscription{
		ID:            m.nextID("sub"),
		TenantID:      t.ID,
		PlanID:        req.PlanID,
		Provider:      subscription.Provider(req.Provider),
		ProviderSubID: req.ProviderSubID,
		Status:        subscription.Status(req.SubscriptionStatus),
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
	}

	cp := *t
	return &cp, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockStore) GetCurrentSubscription(_ context.Context, tenantID string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getSubCalls++
	sub, ok := m.subs[tenantID]
	if !ok || sub.Status == subscription.StatusCanceled {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *mockStore) CreateSubscription(_ context.Context, req subscription.CreateRequest) (*subscription.Subscription, error) {
	if m.createSubErr != nil {
		return nil, m.createSubErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &subscription.Subscription{
		ID:            m.nextID("sub"),
		TenantID:      req.TenantID,
		PlanID:        req.PlanID,
		Provider:      req.Provider,
		ProviderSubID: req.ProviderSubID,
		Status:        req.Status,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		TrialEnd:      req.TrialEnd,
	}
	m.subs[req.TenantID] = sub
	cp := *sub
	return &cp, nil
}

func (m *mockStore) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	if m.updateSubErr != nil {
		return m.updateSubErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateSubCalls++
	cp := *sub
	m.subs[sub.TenantID] = &cp
	return nil
}

func (m *mockStore) ClaimEvent(_ context.Context, provider, eventID string) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + "/" + eventID
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *mockStore) ReleaseEvent(_ context.Context, provider, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, provider+"/"+eventID)
	return nil
}

func (m *mockStore) RecordPaymentFee(_ context.Context, rec *fee.Record) error {
	if m.recordFeeErr != nil {
		return m.recordFeeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.ID = m.nextID("fee")
	cp.RecordedAt = time.Now()
	m.fees = append(m.fees, &cp)
	return nil
}

func (m *mockStore) FeeSummaryByProvider(_ context.Context, _, _ time.Time) ([]fee.ProviderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byProvider := map[string]*fee.ProviderSummary{}
	for _, rec := range m.fees {
		s, ok := byProvider[rec.Provider]
		if !ok {
			s = &fee.ProviderSummary{Provider: rec.Provider}
			byProvider[rec.Provider] = s
		}
		s.TransactionCount++
		s.AmountCents += rec.AmountCents
		s.FeeCents += rec.FeeCents
	}
	out := make([]fee.ProviderSummary, 0, len(byProvider))
	for _, s := range byProvider {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockStore) FeeSummaryDaily(_ context.Context, _ int) ([]fee.DailySummary, error) {
	return nil, nil
}

// mockCache is a map-backed cache port. TTLs are ignored.
type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes++
	return nil
}

// mockCatalog serves plans from a map.
type mockCatalog struct {
	plans map[string]plan.Plan
}

func (c *mockCatalog) GetPlanByID(_ context.Context, planID string) (*plan.Plan, error) {
	p, ok := c.plans[planID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// mockNotifier records every notification it receives.
type mockNotifier struct {
	mu      sync.Mutex
	sent    []notifier.Notification
	sendErr error
}

func (n *mockNotifier) Name() string { return "mock" }

func (n *mockNotifier) Send(_ context.Context, note notifier.Notification) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

func (n *mockNotifier) bySource(source string) []notifier.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifier.Notification
	for _, note := range n.sent {
		if note.Source == source {
			out = append(out, note)
		}
	}
	return out
}

// mockProviderAdapter serves canned responses for the manual-sync path.
type mockProviderAdapter struct {
	name     string
	snap     *billing.SubscriptionSnapshot
	fetchErr error
}

func (a *mockProviderAdapter) Name() string { return a.name }

func (a *mockProviderAdapter) Normalize(_ []byte, _ string) (*billing.Event, error) {
	return nil, nil
}

func (a *mockProviderAdapter) FetchCurrentState(_ context.Context, _ string) (*billing.SubscriptionSnapshot, error) {
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	return a.snap, nil
}

// testFixture wires a reconciler with mock collaborators for service tests.
type testFixture struct {
	store      *mockStore
	cache      *mockCache
	catalog    *mockCatalog
	notifier   *mockNotifier
	ents       *Entitlements
	fees       *Fees
	reconciler *Reconciler
}

func newFixture() *testFixture {
	store := newMockStore()
	c := newMockCache()
	catalog := &mockCatalog{plans: map[string]plan.Plan{
		"plan-basic": {
			ID:       "plan-basic",
			Name:     "Basic",
			Limits:   plan.Limits{MaxUsers: 5, MaxLocations: 1, MaxStorageMB: 512},
			Features: map[string]bool{"scheduling": true},
		},
	}}
	mn := &mockNotifier{}

	ents := NewEntitlements(store, catalog, c, time.Minute)
	fees := NewFees(store,
		fee.Rate{Percent: 2.9, FixedCents: 30},
		map[string]fee.Rate{"pix": {Percent: 0.99}},
		nil)
	notify := NewNotifications([]notifier.Notifier{mn}, "https://app.test")

	return &testFixture{
		store:      store,
		cache:      c,
		catalog:    catalog,
		notifier:   mn,
		ents:       ents,
		fees:       fees,
		reconciler: NewReconciler(store, NewProvisioner(store), ents, fees, notify, catalog, nil),
	}
}
