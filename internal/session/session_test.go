package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hichers/hichers/internal/model"
)

func testSession() model.Session {
	return model.Session{
		AuthToken: "tok_123",
		UserID:    42,
		Business: model.BusinessProfile{
			Name:        "Corner Cafe",
			Phone:       "7700900123",
			CountryCode: "+44",
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))

	s, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	if s.Authenticated() {
		t.Fatal("expected unauthenticated session from missing file")
	}

	if err := fs.Save(ctx, testSession()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != testSession() {
		t.Errorf("expected %+v, got %+v", testSession(), got)
	}

	info, err := os.Stat(fs.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestFileStoreWritesLegacyKeys(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	if err := fs.Save(ctx, testSession()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(fs.Path())
	if err != nil {
		t.Fatal(err)
	}
	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		t.Fatal(err)
	}
	for _, pair := range [][2]string{tokenKeys, userIDKeys, userKeys} {
		if kv[pair[0]] == "" || kv[pair[0]] != kv[pair[1]] {
			t.Errorf("expected %s and %s to match, got %q / %q", pair[0], pair[1], kv[pair[0]], kv[pair[1]])
		}
	}
}

func TestFileStoreLegacyFallback(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	legacy := map[string]string{
		"hichersToken":  "legacy_tok",
		"hichersUserID": "7",
		"hichersUser":   `{"name":"Old Shop","phone":"123","countryCode":"+44"}`,
	}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.AuthToken != "legacy_tok" || s.UserID != 7 {
		t.Errorf("expected legacy token and user id, got %+v", s)
	}
	if s.Business.Name != "Old Shop" {
		t.Errorf("expected profile name Old Shop, got %q", s.Business.Name)
	}
}

func TestFileStorePrefersCurrentKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	data, _ := json.Marshal(map[string]string{
		"token":         "new_tok",
		"hichersToken":  "old_tok",
		"userID":        "9",
		"hichersUserID": "8",
	})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.AuthToken != "new_tok" || s.UserID != 9 {
		t.Errorf("expected current keys to win, got %+v", s)
	}
}

func TestFileStoreTokenWithoutUser(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	data, _ := json.Marshal(map[string]string{"token": "orphan"})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(ctx); !errors.Is(err, ErrInconsistent) {
		t.Errorf("expected ErrInconsistent, got %v", err)
	}
}

func TestSaveRejectsTokenWithoutUser(t *testing.T) {
	ctx := context.Background()
	bad := model.Session{AuthToken: "tok"}

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "s.json")),
	}
	for name, st := range stores {
		if err := st.Save(ctx, bad); !errors.Is(err, ErrTokenWithoutUser) {
			t.Errorf("%s: expected ErrTokenWithoutUser, got %v", name, err)
		}
	}
}

func TestPendingOTPLifecycle(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "s.json")),
	}
	want := model.PendingOTP{TempUserID: 55, Phone: "7700900123", CountryCode: "+44"}

	for name, st := range stores {
		if err := st.SavePending(ctx, want); err != nil {
			t.Fatalf("%s: SavePending: %v", name, err)
		}
		got, err := st.LoadPending(ctx)
		if err != nil {
			t.Fatalf("%s: LoadPending: %v", name, err)
		}
		if got != want {
			t.Errorf("%s: expected %+v, got %+v", name, want, got)
		}
		if err := st.ClearPending(ctx); err != nil {
			t.Fatalf("%s: ClearPending: %v", name, err)
		}
		got, _ = st.LoadPending(ctx)
		if !got.Empty() {
			t.Errorf("%s: expected empty pending state after clear, got %+v", name, got)
		}
	}
}

func TestClearRemovesSession(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "s.json"))
	if err := fs.Save(ctx, testSession()); err != nil {
		t.Fatal(err)
	}
	if err := fs.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if err := fs.Clear(ctx); err != nil {
		t.Errorf("second Clear() should be a no-op, got %v", err)
	}
	s, _ := fs.Load(ctx)
	if s.Authenticated() {
		t.Error("expected cleared session")
	}
}

func TestMemoryProviderIsolatesSessions(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(time.Hour)
	if err := p.For("a").Save(ctx, testSession()); err != nil {
		t.Fatal(err)
	}
	b, _ := p.For("b").Load(ctx)
	if b.Authenticated() {
		t.Error("session b should not see session a")
	}
	a, _ := p.For("a").Load(ctx)
	if !a.Authenticated() {
		t.Error("session a should persist across For() calls")
	}
}

func TestMemoryProviderExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	p := NewMemoryProvider(time.Hour, WithMemoryClock(func() time.Time { return now }))
	if err := p.For("a").Save(ctx, testSession()); err != nil {
		t.Fatal(err)
	}

	// Each read slides the expiry forward.
	now = now.Add(50 * time.Minute)
	if s, _ := p.For("a").Load(ctx); !s.Authenticated() {
		t.Fatal("session should still be live after 50m")
	}
	now = now.Add(50 * time.Minute)
	if s, _ := p.For("a").Load(ctx); !s.Authenticated() {
		t.Fatal("session read 50m ago should still be live")
	}

	now = now.Add(time.Hour + time.Second)
	if s, _ := p.For("a").Load(ctx); s.Authenticated() {
		t.Error("idle session should read as signed out")
	}
	if n := p.Len(); n != 0 {
		t.Errorf("Len() = %d after expiry, want 0", n)
	}
}

func TestMemoryProviderReadsDoNotAllocate(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(time.Hour)
	for i := range 50 {
		st := p.For("anon-" + strconv.Itoa(i))
		if _, err := st.Load(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := st.LoadPending(ctx); err != nil {
			t.Fatal(err)
		}
		if err := st.ClearPending(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if n := p.Len(); n != 0 {
		t.Errorf("Len() = %d after anonymous reads, want 0", n)
	}
}

func TestMemoryProviderPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	p := NewMemoryProvider(time.Hour, WithMemoryClock(func() time.Time { return now }))
	p.For("old").Save(ctx, testSession())
	now = now.Add(45 * time.Minute)
	p.For("new").Save(ctx, testSession())
	now = now.Add(30 * time.Minute)

	if n := p.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	if s, _ := p.For("new").Load(ctx); !s.Authenticated() {
		t.Error("recent session should survive the purge")
	}
	if n := p.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestMemoryProviderClearDropsEntry(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(0)
	st := p.For("a")
	st.Save(ctx, testSession())
	if err := st.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n := p.Len(); n != 0 {
		t.Errorf("Len() = %d after Clear, want 0", n)
	}
	if n := p.Purge(); n != 0 {
		t.Errorf("Purge() with no TTL = %d, want 0", n)
	}
}

func TestStartSweeperPurges(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	p := NewMemoryProvider(time.Minute, WithMemoryClock(clock))
	p.For("a").Save(ctx, testSession())
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	sched, err := StartSweeper(p, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sched.Shutdown() })

	deadline := time.Now().Add(2 * time.Second)
	for p.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not purge the idle session")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRedisProvider(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	sid := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	st := NewRedisProvider(client, time.Minute).For(sid)
	t.Cleanup(func() { st.Clear(ctx) })

	if err := st.Save(ctx, testSession()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != testSession() {
		t.Errorf("expected %+v, got %+v", testSession(), got)
	}
	if err := st.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ = st.Load(ctx)
	if got.Authenticated() {
		t.Error("expected cleared session")
	}
}

func TestContextReader(t *testing.T) {
	ctx := context.Background()
	s, err := ContextReader{}.Load(ctx)
	if err != nil || s.Authenticated() {
		t.Fatalf("expected signed-out session without a store, got %+v, %v", s, err)
	}

	st := NewMemoryStore()
	if err := st.Save(ctx, testSession()); err != nil {
		t.Fatal(err)
	}
	s, err = ContextReader{}.Load(WithStore(ctx, st))
	if err != nil {
		t.Fatal(err)
	}
	if s.AuthToken != "tok_123" {
		t.Errorf("expected session from attached store, got %+v", s)
	}
}
