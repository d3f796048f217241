// Package session persists the authenticated shopkeeper session and the
// transient OTP state. Stores are injected into the gateway; nothing here is
// global.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/hichers/hichers/internal/model"
)

var (
	// ErrTokenWithoutUser is returned when saving a token not bound to a user id.
	ErrTokenWithoutUser = errors.New("session: auth token requires a user id")
	// ErrInconsistent is returned when persisted state holds a token but no user id.
	ErrInconsistent = errors.New("session: stored token has no user id")
)

// Store holds one session. Load returns the zero Session when nothing is stored.
type Store interface {
	Load(ctx context.Context) (model.Session, error)
	Save(ctx context.Context, s model.Session) error
	Clear(ctx context.Context) error
	LoadPending(ctx context.Context) (model.PendingOTP, error)
	SavePending(ctx context.Context, p model.PendingOTP) error
	ClearPending(ctx context.Context) error
}

// Provider hands out the Store for a browser session id.
type Provider interface {
	For(sid string) Store
}

func checkInvariant(s model.Session) error {
	if s.AuthToken != "" && s.UserID <= 0 {
		return ErrTokenWithoutUser
	}
	return nil
}

// MemoryStore keeps a session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	session model.Session
	pending model.PendingOTP
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored session.
func (m *MemoryStore) Load(ctx context.Context) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

// Save replaces the stored session.
func (m *MemoryStore) Save(ctx context.Context, s model.Session) error {
	if err := checkInvariant(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

// Clear removes the session and any pending OTP state.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = model.Session{}
	m.pending = model.PendingOTP{}
	return nil
}

// LoadPending returns the pending OTP state.
func (m *MemoryStore) LoadPending(ctx context.Context) (model.PendingOTP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending, nil
}

// SavePending stores the pending OTP state.
func (m *MemoryStore) SavePending(ctx context.Context, p model.PendingOTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = p
	return nil
}

// ClearPending drops the pending OTP state.
func (m *MemoryStore) ClearPending(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = model.PendingOTP{}
	return nil
}

type storeKey struct{}

// WithStore attaches the store for the current request to ctx.
func WithStore(ctx context.Context, st Store) context.Context {
	return context.WithValue(ctx, storeKey{}, st)
}

// StoreFrom returns the store attached by WithStore.
func StoreFrom(ctx context.Context) (Store, bool) {
	st, ok := ctx.Value(storeKey{}).(Store)
	return st, ok
}

// ContextReader loads the session from the store attached to the context,
// so one gateway client can serve many browser sessions. A context without
// a store reads as signed out.
type ContextReader struct{}

// Load implements the gateway's session reader.
func (ContextReader) Load(ctx context.Context) (model.Session, error) {
	st, ok := StoreFrom(ctx)
	if !ok {
		return model.Session{}, nil
	}
	return st.Load(ctx)
}
