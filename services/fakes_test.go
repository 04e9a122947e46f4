package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"hardline-backend/models"
	"hardline-backend/realtime"
	"hardline-backend/repository"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"gorm.io/gorm"
)

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.Order
	createErr error
	findErr   error
	// missesBeforeFound makes FindBySessionID report not-found this many
	// times before it starts returning stored orders.
	missesBeforeFound int
	sessionLookups    int
	deletedItemsFirst bool
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrderRepo) CreateWithItems(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, o := range f.orders {
		if o.StripeSessionID == order.StripeSessionID {
			return repository.ErrDuplicateOrder
		}
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) FindBySessionID(_ context.Context, sessionID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionLookups++
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.missesBeforeFound > 0 {
		f.missesBeforeFound--
		return nil, gorm.ErrRecordNotFound
	}
	for _, o := range f.orders {
		if o.StripeSessionID == sessionID {
			cp := *o
			cp.Items = nil
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrderRepo) List(_ context.Context, filter repository.OrderFilter) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.UserID != nil && (o.UserID == nil || *o.UserID != *filter.UserID) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	start := (filter.Page - 1) * filter.Limit
	if start > len(out) {
		start = len(out)
	}
	end := start + filter.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrderRepo) DeleteWithItems(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Items = nil
	f.deletedItemsFirst = true
	delete(f.orders, id)
	return nil
}

func (f *fakeOrderRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeProfileRepo struct {
	profiles []models.Profile
	err      error
}

func (f *fakeProfileRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	for i := range f.profiles {
		if f.profiles[i].ID == id {
			return &f.profiles[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProfileRepo) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.profiles {
		if strings.EqualFold(f.profiles[i].Email, strings.TrimSpace(email)) {
			return &f.profiles[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*models.Notification
	createErr error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{items: map[uuid.UUID]*models.Notification{}}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	cp := *n
	f.items[n.ID] = &cp
	return nil
}

func (f *fakeNotificationRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationRepo) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		if filter.Broadcast && n.UserID != nil {
			continue
		}
		if !filter.Broadcast && filter.UserID != nil && (n.UserID == nil || *n.UserID != *filter.UserID) {
			continue
		}
		if filter.Unread && n.Read {
			continue
		}
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.Read = true
	return nil
}

func (f *fakeNotificationRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeNotificationRepo) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		out = append(out, *n)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
	err  error
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]string{}}
}

func (m *memoryIdempotency) Claim(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value
	return true, nil
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], m.err
}

func (m *memoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type fakeProvider struct {
	calls  int
	params *stripe.CheckoutSessionParams
	err    error
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	p.calls++
	p.params = params
	if p.err != nil {
		return nil, p.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_abc", URL: "https://checkout.stripe.com/c/pay/cs_test_abc"}, nil
}

func (p *fakeProvider) ConstructEvent(_ []byte, _ string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}
