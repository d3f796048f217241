package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/hichers/hichers/internal/model"
)

type memoryEntry struct {
	store    *MemoryStore
	lastSeen time.Time
}

// MemoryProvider keeps one MemoryStore per session id with the same sliding
// TTL as RedisProvider. Entries are created on the first write, so requests
// that never sign in leave nothing behind.
type MemoryProvider struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*memoryEntry
}

// MemoryOption configures a MemoryProvider.
type MemoryOption func(*MemoryProvider)

// WithMemoryClock replaces time.Now, for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) { p.now = now }
}

// NewMemoryProvider creates an empty provider. A ttl of zero keeps sessions
// until they are cleared.
func NewMemoryProvider(ttl time.Duration, opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{ttl: ttl, now: time.Now, entries: make(map[string]*memoryEntry)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// For returns the store for sid.
func (p *MemoryProvider) For(sid string) Store {
	return &providerStore{p: p, sid: sid}
}

// Len reports how many sessions are held.
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Purge drops sessions idle for longer than the TTL and returns how many
// were removed.
func (p *MemoryProvider) Purge() int {
	if p.ttl <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for sid, e := range p.entries {
		if p.expired(e, now) {
			delete(p.entries, sid)
			n++
		}
	}
	return n
}

func (p *MemoryProvider) expired(e *memoryEntry, now time.Time) bool {
	return p.ttl > 0 && now.Sub(e.lastSeen) > p.ttl
}

// lookup returns the live store for sid and refreshes its TTL. It returns
// nil for an unknown or expired sid unless create is set.
func (p *MemoryProvider) lookup(sid string, create bool) *MemoryStore {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	e, ok := p.entries[sid]
	if ok && p.expired(e, now) {
		delete(p.entries, sid)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		e = &memoryEntry{store: NewMemoryStore()}
		p.entries[sid] = e
	}
	e.lastSeen = now
	return e.store
}

// StartSweeper purges idle sessions every interval on a gocron scheduler.
func StartSweeper(p *MemoryProvider, interval time.Duration, logger *slog.Logger) (gocron.Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := p.Purge(); n > 0 {
				logger.Info("purged idle sessions", "count", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("scheduling session sweep: %w", err)
	}
	sched.Start()
	return sched, nil
}

// providerStore resolves its MemoryStore on every call so expiry applies
// mid-conversation.
type providerStore struct {
	p   *MemoryProvider
	sid string
}

func (s *providerStore) Load(ctx context.Context) (model.Session, error) {
	if st := s.p.lookup(s.sid, false); st != nil {
		return st.Load(ctx)
	}
	return model.Session{}, nil
}

func (s *providerStore) Save(ctx context.Context, sess model.Session) error {
	if err := checkInvariant(sess); err != nil {
		return err
	}
	return s.p.lookup(s.sid, true).Save(ctx, sess)
}

func (s *providerStore) Clear(ctx context.Context) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	delete(s.p.entries, s.sid)
	return nil
}

func (s *providerStore) LoadPending(ctx context.Context) (model.PendingOTP, error) {
	if st := s.p.lookup(s.sid, false); st != nil {
		return st.LoadPending(ctx)
	}
	return model.PendingOTP{}, nil
}

func (s *providerStore) SavePending(ctx context.Context, pending model.PendingOTP) error {
	return s.p.lookup(s.sid, true).SavePending(ctx, pending)
}

func (s *providerStore) ClearPending(ctx context.Context) error {
	if st := s.p.lookup(s.sid, false); st != nil {
		return st.ClearPending(ctx)
	}
	return nil
}
