package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/goccy/go-json"

	"github.com/hichers/hichers/internal/model"
)

// Persisted keys. Each value has a current and a legacy name; reads fall back
// to the legacy name and writes set both so older clients keep working.
var (
	tokenKeys   = [2]string{"token", "hichersToken"}
	userIDKeys  = [2]string{"userID", "hichersUserID"}
	userKeys    = [2]string{"userInfo", "hichersUser"}
	tempUserKey = "tempUserID"
	tempPhone   = "tempPhoneDetails"
)

// FileStore persists the session as a flat string map in a JSON file,
// mirroring the browser storage layout.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading session %s: %w", f.path, err)
	}
	kv := map[string]string{}
	if len(data) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", f.path, err)
	}
	return kv, nil
}

func (f *FileStore) write(kv map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func first(kv map[string]string, keys [2]string) string {
	if v := kv[keys[0]]; v != "" {
		return v
	}
	return kv[keys[1]]
}

func setBoth(kv map[string]string, keys [2]string, v string) {
	kv[keys[0]] = v
	kv[keys[1]] = v
}

// Load reads the session, falling back through legacy keys.
func (f *FileStore) Load(ctx context.Context) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return model.Session{}, err
	}

	var s model.Session
	s.AuthToken = first(kv, tokenKeys)
	if raw := first(kv, userIDKeys); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return model.Session{}, fmt.Errorf("parsing stored user id %q: %w", raw, err)
		}
		s.UserID = id
	}
	if raw := first(kv, userKeys); raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Business); err != nil {
			return model.Session{}, fmt.Errorf("parsing stored profile: %w", err)
		}
	}
	if s.AuthToken != "" && s.UserID <= 0 {
		return model.Session{}, ErrInconsistent
	}
	return s, nil
}

// Save writes the session under both current and legacy keys.
func (f *FileStore) Save(ctx context.Context, s model.Session) error {
	if err := checkInvariant(s); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return err
	}
	profile, err := json.Marshal(s.Business)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	setBoth(kv, tokenKeys, s.AuthToken)
	setBoth(kv, userIDKeys, strconv.Itoa(s.UserID))
	setBoth(kv, userKeys, string(profile))
	return f.write(kv)
}

// Clear deletes the session file.
func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// LoadPending reads the transient OTP state.
func (f *FileStore) LoadPending(ctx context.Context) (model.PendingOTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return model.PendingOTP{}, err
	}
	var p model.PendingOTP
	if raw := kv[tempUserKey]; raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return model.PendingOTP{}, fmt.Errorf("parsing temp user id %q: %w", raw, err)
		}
		p.TempUserID = id
	}
	if raw := kv[tempPhone]; raw != "" {
		var phone struct {
			Phone       string `json:"phone"`
			CountryCode string `json:"countryCode"`
		}
		if err := json.Unmarshal([]byte(raw), &phone); err != nil {
			return model.PendingOTP{}, fmt.Errorf("parsing temp phone details: %w", err)
		}
		p.Phone = phone.Phone
		p.CountryCode = phone.CountryCode
	}
	return p, nil
}

// SavePending writes the transient OTP state.
func (f *FileStore) SavePending(ctx context.Context, p model.PendingOTP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return err
	}
	phone, err := json.Marshal(map[string]string{"phone": p.Phone, "countryCode": p.CountryCode})
	if err != nil {
		return fmt.Errorf("marshaling phone details: %w", err)
	}
	kv[tempUserKey] = strconv.Itoa(p.TempUserID)
	kv[tempPhone] = string(phone)
	return f.write(kv)
}

// ClearPending removes the transient OTP keys.
func (f *FileStore) ClearPending(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return err
	}
	delete(kv, tempUserKey)
	delete(kv, tempPhone)
	return f.write(kv)
}
