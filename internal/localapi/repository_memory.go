package localapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hichers/hichers/pkg/store"
)

// MemoryRepository keeps everything in process. It backs the server when no
// database is configured, and the handler tests.
type MemoryRepository struct {
	businesses    *store.Store[Business]
	programs      *store.Store[LoyaltyProgram]
	customers     *store.Store[Customer]
	subscriptions *store.Store[Subscription]
	contacts      *store.Store[ContactMessage]

	mu   sync.Mutex // serializes check-then-insert and guards otps
	otps map[string]DemoOTP
	now  func() time.Time
}

// NewMemoryRepository creates an empty repository. A nil now uses time.Now.
func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{
		businesses:    store.New[Business](1),
		programs:      store.New[LoyaltyProgram](1),
		customers:     store.New[Customer](1),
		subscriptions: store.New[Subscription](1),
		contacts:      store.New[ContactMessage](1),
		otps:          make(map[string]DemoOTP),
		now:           now,
	}
}

func (m *MemoryRepository) CreateBusiness(_ context.Context, b *Business) error {
	b.ID = m.businesses.NextID()
	b.CreatedAt = m.now()
	m.businesses.Set(b.ID, *b)
	return nil
}

func (m *MemoryRepository) GetBusiness(_ context.Context, id int) (Business, error) {
	b, ok := m.businesses.Get(id)
	if !ok {
		return Business{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryRepository) ListBusinesses(_ context.Context) ([]Business, error) {
	return m.businesses.List(), nil
}

func (m *MemoryRepository) CreateProgram(_ context.Context, p *LoyaltyProgram) error {
	if _, ok := m.businesses.Get(p.BusinessID); !ok {
		return ErrNotFound
	}
	p.ID = m.programs.NextID()
	p.CreatedAt = m.now()
	m.programs.Set(p.ID, *p)
	return nil
}

func (m *MemoryRepository) ListPrograms(_ context.Context, businessID int) ([]LoyaltyProgram, error) {
	return m.programs.Filter(func(_ int, p LoyaltyProgram) bool {
		return businessID == 0 || p.BusinessID == businessID
	}), nil
}

func (m *MemoryRepository) CreateCustomer(_ context.Context, c *Customer) error {
	if _, ok := m.businesses.Get(c.BusinessID); !ok {
		return ErrNotFound
	}
	c.ID = m.customers.NextID()
	c.CreatedAt = m.now()
	m.customers.Set(c.ID, *c)
	return nil
}

func (m *MemoryRepository) ListCustomers(_ context.Context, businessID int) ([]Customer, error) {
	return m.customers.Filter(func(_ int, c Customer) bool {
		return businessID == 0 || c.BusinessID == businessID
	}), nil
}

func (m *MemoryRepository) Subscribe(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _, taken := m.subscriptions.Find(func(_ int, existing Subscription) bool {
		return strings.EqualFold(existing.Email, s.Email)
	})
	if taken {
		return ErrConflict
	}
	s.ID = m.subscriptions.NextID()
	s.CreatedAt = m.now()
	m.subscriptions.Set(s.ID, *s)
	return nil
}

func (m *MemoryRepository) SaveContact(_ context.Context, msg *ContactMessage) error {
	msg.ID = m.contacts.NextID()
	msg.CreatedAt = m.now()
	m.contacts.Set(msg.ID, *msg)
	return nil
}

func (m *MemoryRepository) SaveOTP(_ context.Context, otp DemoOTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[otp.Phone] = otp
	return nil
}

func (m *MemoryRepository) GetOTP(_ context.Context, phone string) (DemoOTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.otps[phone]
	if !ok {
		return DemoOTP{}, ErrNotFound
	}
	return otp, nil
}

func (m *MemoryRepository) DeleteOTP(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.otps, phone)
	return nil
}

func (m *MemoryRepository) PurgeOTPs(_ context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for phone, otp := range m.otps {
		if otp.ExpiresAt.Before(t) {
			delete(m.otps, phone)
			n++
		}
	}
	return n, nil
}
