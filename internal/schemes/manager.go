package schemes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
)

// Gateway is the subset of the remote client used by the manager.
type Gateway interface {
	LoadSchemes(ctx context.Context) (*gateway.Response, error)
	SaveScheme(ctx context.Context, payload map[string]any) (*gateway.Response, error)
}

// List is the result of loading schemes.
type List struct {
	Schemes []model.LoyaltyScheme `json:"schemes"`
	// Unavailable is set when the list could not be loaded.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Created reports the name a scheme was saved under.
type Created struct {
	Name    string `json:"name"`
	Renamed bool   `json:"renamed"`
	Message string `json:"message,omitempty"`
}

// Manager runs scheme operations against the remote API.
type Manager struct {
	gw       Gateway
	detector DuplicateDetector
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDetector replaces the duplicate-name detector.
func WithDetector(d DuplicateDetector) Option {
	return func(m *Manager) { m.detector = d }
}

// WithLocation sets the zone dates are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager.
func NewManager(gw Gateway, opts ...Option) *Manager {
	m := &Manager{
		gw:       gw,
		detector: DefaultDuplicateMarker,
		loc:      time.Local,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List loads all schemes. Failures are logged and reported through
// List.Unavailable rather than returned.
func (m *Manager) List(ctx context.Context) List {
	resp, err := m.gw.LoadSchemes(ctx)
	if err == nil && resp.Soft {
		err = resp.Err(gateway.EndpointLoadSchemes)
	}
	if err != nil {
		m.logger.Warn("loading schemes failed", "err", err)
		return List{Schemes: []model.LoyaltyScheme{}, Unavailable: true}
	}

	env := gateway.NormalizeList(resp.Data)
	out := List{Schemes: make([]model.LoyaltyScheme, 0, len(env.Items))}
	for _, item := range env.Items {
		out.Schemes = append(out.Schemes, MapRemoteToLocal(item))
	}
	return out
}

// CreateWithRetry validates and saves a scheme. If the name is taken it
// retries once with today's date appended (Gold becomes Gold20250115).
func (m *Manager) CreateWithRetry(ctx context.Context, d Draft) (Created, error) {
	d.Name = strings.TrimSpace(d.Name)
	if err := ValidateDraft(d); err != nil {
		return Created{}, err
	}

	created, dup, err := m.submit(ctx, d)
	if !dup {
		return created, err
	}

	d.Name = suffixName(d.Name, m.now().In(m.loc).Format("20060102"))
	m.logger.Info("scheme name taken, retrying with date suffix", "name", d.Name)
	created, dup, err = m.submit(ctx, d)
	if dup {
		return Created{}, ErrDuplicateName
	}
	if err != nil {
		return Created{}, err
	}
	created.Renamed = true
	return created, nil
}

func (m *Manager) submit(ctx context.Context, d Draft) (Created, bool, error) {
	payload := BuildRemotePayload(d, m.loc)
	resp, err := m.gw.SaveScheme(ctx, payload)
	if m.detector.IsDuplicate(resp, err) {
		return Created{}, true, nil
	}
	if err != nil {
		return Created{}, false, fmt.Errorf("saving scheme: %w", err)
	}
	if err := resp.Err(gateway.EndpointSaveScheme); err != nil {
		return Created{}, false, fmt.Errorf("saving scheme: %w", err)
	}
	return Created{Name: payload["loyaltySchemeName"].(string), Message: resp.Message()}, false, nil
}

// suffixName appends suffix, shortening base so the result stays within the
// name length limit.
func suffixName(base, suffix string) string {
	r := []rune(base)
	if keep := maxNameLen - len(suffix); len(r) > keep {
		r = []rune(strings.TrimSpace(string(r[:keep])))
	}
	return string(r) + suffix
}
