package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
)

var (
	// ErrNotRunning is returned when ending an offer that is not currently live.
	ErrNotRunning = errors.New("offers: only running offers can be ended early")
	// ErrNotFound is returned when an offer id is not in the current list.
	ErrNotFound = errors.New("offers: offer not found")
)

// Gateway is the subset of the remote client used by the manager.
type Gateway interface {
	LoadOffers(ctx context.Context) (*gateway.Response, error)
	SaveOffer(ctx context.Context, payload map[string]any) (*gateway.Response, error)
	UpdateOffer(ctx context.Context, id int, payload map[string]any) (*gateway.Response, error)
	DeleteOffer(ctx context.Context, id int) (*gateway.Response, error)
	ViewOffer(ctx context.Context, offerID, mapID int) (*gateway.Response, error)
}

// Manager runs offer operations against the remote API.
type Manager struct {
	gw     Gateway
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocation sets the zone offer times are rendered in.
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
		gw:     gw,
		loc:    time.Local,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Location returns the zone offer times are rendered in.
func (m *Manager) Location() *time.Location { return m.loc }

// List loads and classifies all offers. Failures are logged and reported
// through Classification.Unavailable rather than returned.
func (m *Manager) List(ctx context.Context) Classification {
	offers, err := m.load(ctx)
	if err != nil {
		m.logger.Warn("loading offers failed", "err", err)
		c := Classify(nil)
		c.Unavailable = true
		return c
	}
	return Classify(offers)
}

func (m *Manager) load(ctx context.Context) ([]model.Offer, error) {
	resp, err := m.gw.LoadOffers(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Soft {
		return nil, resp.Err(gateway.EndpointLoadOffers)
	}

	now := m.now()
	env := gateway.NormalizeList(resp.Data)
	offers := make([]model.Offer, 0, len(env.Items))
	for _, item := range env.Items {
		o, err := MapRemoteToLocal(item, now, m.loc)
		if err != nil {
			m.logger.Warn("skipping remote offer", "err", err)
			continue
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// Create validates and saves a new offer.
func (m *Manager) Create(ctx context.Context, d Draft) (model.Offer, error) {
	d.ID = 0
	v, err := ValidateDraft(d, m.now())
	if err != nil {
		return model.Offer{}, err
	}
	resp, err := m.gw.SaveOffer(ctx, ToRemoteContract(v, m.loc))
	if err != nil {
		return model.Offer{}, fmt.Errorf("saving offer: %w", err)
	}
	if err := resp.Err(gateway.EndpointSaveOffer); err != nil {
		return model.Offer{}, fmt.Errorf("saving offer: %w", err)
	}

	o := m.fromValid(v)
	if obj := resp.Object(); obj != nil {
		o.ID = obj.Int("offerID", "id")
		if data := obj.Object("data", "offer"); data != nil && o.ID == 0 {
			o.ID = data.Int("offerID", "id")
		}
	}
	return o, nil
}

// Update validates and replaces offer id.
func (m *Manager) Update(ctx context.Context, id int, d Draft) (model.Offer, error) {
	if id <= 0 {
		return model.Offer{}, model.Invalid("offerID", "offer id is required")
	}
	d.ID = id
	v, err := ValidateDraft(d, m.now())
	if err != nil {
		return model.Offer{}, err
	}
	if err := m.update(ctx, v); err != nil {
		return model.Offer{}, err
	}
	return m.fromValid(v), nil
}

func (m *Manager) update(ctx context.Context, v ValidOffer) error {
	resp, err := m.gw.UpdateOffer(ctx, v.draft.ID, ToRemoteContract(v, m.loc))
	if err != nil {
		return fmt.Errorf("updating offer %d: %w", v.draft.ID, err)
	}
	if err := resp.Err(gateway.EndpointUpdateOffer); err != nil {
		return fmt.Errorf("updating offer %d: %w", v.draft.ID, err)
	}
	return nil
}

// Delete removes offer id.
func (m *Manager) Delete(ctx context.Context, id int) error {
	resp, err := m.gw.DeleteOffer(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting offer %d: %w", id, err)
	}
	if err := resp.Err(gateway.EndpointDeleteOffer); err != nil {
		return fmt.Errorf("deleting offer %d: %w", id, err)
	}
	return nil
}

// EndEarly stops a running offer by moving its end to the current minute.
// The remote has no dedicated call for this, so it is an ordinary update.
func (m *Manager) EndEarly(ctx context.Context, id int) (model.Offer, error) {
	offers, err := m.load(ctx)
	if err != nil {
		return model.Offer{}, fmt.Errorf("loading offers: %w", err)
	}
	var target *model.Offer
	for i := range offers {
		if offers[i].ID == id {
			target = &offers[i]
			break
		}
	}
	if target == nil {
		return model.Offer{}, ErrNotFound
	}
	if target.TimeStatus != model.StatusPresent {
		return model.Offer{}, ErrNotRunning
	}

	now := m.now().Truncate(time.Minute)
	until := now
	if !until.After(target.ValidFrom) {
		until = target.ValidFrom.Add(time.Minute)
	}
	v := ValidOffer{draft: Draft{
		ID:          target.ID,
		MapID:       target.MapID,
		Title:       target.Title,
		Description: target.Description,
		OfferTypeID: target.OfferTypeID,
		Discount:    target.Discount,
		ValidFrom:   target.ValidFrom,
		ValidUntil:  until,
	}}
	if err := m.update(ctx, v); err != nil {
		return model.Offer{}, err
	}
	ended := m.fromValid(v)
	ended.RedemptionCount = target.RedemptionCount
	return ended, nil
}

// View loads one offer with its statistics.
func (m *Manager) View(ctx context.Context, offerID, mapID int) (model.OfferDetail, error) {
	resp, err := m.gw.ViewOffer(ctx, offerID, mapID)
	if err != nil {
		return model.OfferDetail{}, fmt.Errorf("viewing offer %d: %w", offerID, err)
	}
	if err := resp.Err(gateway.EndpointViewOffer); err != nil {
		return model.OfferDetail{}, fmt.Errorf("viewing offer %d: %w", offerID, err)
	}

	obj := resp.Object()
	body := obj
	if inner := obj.Object("data", "offer", "response"); inner != nil {
		body = inner
	}
	if body == nil {
		body = gateway.Fields{}
	}
	if !body.Has("offerID", "id") {
		body["offerID"] = offerID
	}
	o, err := MapRemoteToLocal(body, m.now(), m.loc)
	if err != nil {
		return model.OfferDetail{}, fmt.Errorf("viewing offer %d: %w", offerID, err)
	}
	if o.MapID == 0 {
		o.MapID = mapID
	}

	stats := body.Object("stats", "statistics")
	if stats == nil {
		stats = body
	}
	return model.OfferDetail{
		Offer: o,
		Stats: model.OfferStats{
			Views:       stats.Int("views", "viewCount"),
			Redemptions: stats.Int("redemptions", "redemptionCount", "redeemCount"),
			Customers:   stats.Int("customers", "customerCount"),
		},
	}, nil
}

func (m *Manager) fromValid(v ValidOffer) model.Offer {
	d := v.draft
	return model.Offer{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		OfferTypeID: d.OfferTypeID,
		Discount:    d.Discount,
		ValidFrom:   d.ValidFrom,
		ValidUntil:  d.ValidUntil,
		IsActive:    true,
		TimeStatus:  StatusAt(d.ValidFrom, d.ValidUntil, m.now()),
		MapID:       d.MapID,
		Label:       DiscountLabel(d.OfferTypeID, d.Discount),
	}
}
