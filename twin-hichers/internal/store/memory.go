// Package store holds the Hichers twin's in-memory state.
package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	pkgstore "github.com/hichers/hichers/pkg/store"
)

// MemoryStore holds all twin state in memory.
type MemoryStore struct {
	Users   *pkgstore.Store[User]
	Offers  *pkgstore.Store[Offer]
	Schemes *pkgstore.Store[Scheme]
	Metrics *pkgstore.Store[Metrics] // keyed by user id

	Clock *pkgstore.Clock

	mu       sync.RWMutex
	settings Settings
	mapSeq   int
}

// New creates a MemoryStore with empty state.
func New() *MemoryStore {
	return &MemoryStore{
		Users:    pkgstore.New[User](1001),
		Offers:   pkgstore.New[Offer](501),
		Schemes:  pkgstore.New[Scheme](201),
		Metrics:  pkgstore.New[Metrics](1),
		Clock:    pkgstore.NewClock(),
		settings: DefaultSettings(),
		mapSeq:   9000,
	}
}

// NextMapID returns a fresh offer-to-business mapping id.
func (s *MemoryStore) NextMapID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapSeq++
	return s.mapSeq
}

// UserByPhone finds a user by country code and mobile number.
func (s *MemoryStore) UserByPhone(countryCode, mobile string) (User, bool) {
	_, u, ok := s.Users.Find(func(_ int, u User) bool {
		return u.CountryCode == countryCode && u.MobileNumber == mobile
	})
	return u, ok
}

// OffersFor returns the offers owned by userID in creation order.
func (s *MemoryStore) OffersFor(userID int) []Offer {
	return s.Offers.Filter(func(_ int, o Offer) bool { return o.UserID == userID })
}

// SchemesFor returns the schemes owned by userID in creation order.
func (s *MemoryStore) SchemesFor(userID int) []Scheme {
	return s.Schemes.Filter(func(_ int, sc Scheme) bool { return sc.UserID == userID })
}

// SchemeNamed reports whether userID already has a scheme called name,
// ignoring case and surrounding space.
func (s *MemoryStore) SchemeNamed(userID int, name string) bool {
	name = strings.TrimSpace(name)
	_, _, ok := s.Schemes.Find(func(_ int, sc Scheme) bool {
		return sc.UserID == userID && strings.EqualFold(sc.Name, name)
	})
	return ok
}

// Settings returns the current response-shape settings.
func (s *MemoryStore) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// OTPTTL returns how long issued codes stay valid.
func (s *MemoryStore) OTPTTL() time.Duration {
	d, err := time.ParseDuration(s.Settings().OTPTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ApplySettings validates every update before applying any.
func (s *MemoryStore) ApplySettings(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	for k, v := range updates {
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", k)
		}
		switch k {
		case "offer_envelope":
			switch str {
			case EnvelopeArray, EnvelopeData, EnvelopeResponse, EnvelopeOffers, EnvelopeNested:
			default:
				return fmt.Errorf("unknown offer_envelope %q", str)
			}
			next.OfferEnvelope = str
		case "save_offer_reply":
			if str != ReplyText && str != ReplyJSON {
				return fmt.Errorf("save_offer_reply must be %q or %q", ReplyText, ReplyJSON)
			}
			next.SaveOfferReply = str
		case "otp_ttl":
			if d, err := time.ParseDuration(str); err != nil || d <= 0 {
				return fmt.Errorf("otp_ttl must be a positive duration")
			}
			next.OTPTTL = str
		default:
			return fmt.Errorf("unknown setting: %s", k)
		}
	}
	s.settings = next
	return nil
}

// stateSnapshot is the JSON-serializable state for admin endpoints.
type stateSnapshot struct {
	Users    map[int]User    `json:"users"`
	Offers   map[int]Offer   `json:"offers"`
	Schemes  map[int]Scheme  `json:"schemes"`
	Metrics  map[int]Metrics `json:"metrics"`
	Settings *Settings       `json:"settings,omitempty"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	settings := s.Settings()
	return stateSnapshot{
		Users:    s.Users.Snapshot(),
		Offers:   s.Offers.Snapshot(),
		Schemes:  s.Schemes.Snapshot(),
		Metrics:  s.Metrics.Snapshot(),
		Settings: &settings,
	}
}

// LoadState replaces the full state from a JSON body. Collections missing
// from the body are emptied.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.Users.LoadSnapshot(snap.Users)
	s.Offers.LoadSnapshot(snap.Offers)
	s.Schemes.LoadSnapshot(snap.Schemes)
	s.Metrics.LoadSnapshot(snap.Metrics)

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Settings != nil {
		s.settings = *snap.Settings
	}
	for _, o := range snap.Offers {
		if o.MapID > s.mapSeq {
			s.mapSeq = o.MapID
		}
	}
	return nil
}

// Reset clears all state.
func (s *MemoryStore) Reset() {
	s.Users.Reset()
	s.Offers.Reset()
	s.Schemes.Reset()
	s.Metrics.Reset()
	s.Clock.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultSettings()
	s.mapSeq = 9000
}
