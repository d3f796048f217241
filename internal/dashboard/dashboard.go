// Package dashboard aggregates schemes, offers and business metrics into the
// dashboard view. The three sources load concurrently and each may fail
// independently; whatever arrived is rendered.
package dashboard

import (
	"context"
	"log/slog"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/offers"
	"github.com/hichers/hichers/internal/schemes"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SchemeLister loads loyalty schemes.
type SchemeLister interface {
	List(ctx context.Context) schemes.List
}

// OfferLister loads classified offers.
type OfferLister interface {
	List(ctx context.Context) offers.Classification
}

// MetricsSource loads the business metrics block.
type MetricsSource interface {
	WebInfo(ctx context.Context) (*gateway.Response, error)
}

// Stat is one headline number.
type Stat struct {
	Label     string          `json:"label"`
	Available bool            `json:"available"`
	Value     decimal.Decimal `json:"value"`
	Delta     Delta           `json:"delta"`
}

// View is the dashboard view model.
type View struct {
	Schemes            []model.LoyaltyScheme `json:"schemes"`
	SchemesUnavailable bool                  `json:"schemesUnavailable,omitempty"`
	ActiveOffers       []model.Offer         `json:"activeOffers"`
	OffersUnavailable  bool                  `json:"offersUnavailable,omitempty"`
	MetricsUnavailable bool                  `json:"metricsUnavailable,omitempty"`

	Customers      Stat `json:"customers"`
	ActivePrograms Stat `json:"activePrograms"`
	RewardsGiven   Stat `json:"rewardsGiven"`
	LoyaltyValue   Stat `json:"loyaltyValue"`
}

// Aggregator builds the dashboard view.
type Aggregator struct {
	schemes SchemeLister
	offers  OfferLister
	metrics MetricsSource
	logger  *slog.Logger
}

// New creates an aggregator. A nil logger uses slog.Default.
func New(s SchemeLister, o OfferLister, m MetricsSource, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{schemes: s, offers: o, metrics: m, logger: logger}
}

// Load fetches every source concurrently and waits for all of them.
func (a *Aggregator) Load(ctx context.Context) View {
	var (
		g        errgroup.Group
		schemeLs schemes.List
		offerCls offers.Classification
		web      gateway.Fields
		webErr   error
	)
	g.Go(func() error {
		schemeLs = a.schemes.List(ctx)
		return nil
	})
	g.Go(func() error {
		offerCls = a.offers.List(ctx)
		return nil
	})
	g.Go(func() error {
		web, webErr = a.loadMetrics(ctx)
		return nil
	})
	g.Wait()

	v := View{
		Schemes:            schemeLs.Schemes,
		SchemesUnavailable: schemeLs.Unavailable,
		ActiveOffers:       offerCls.Present,
		OffersUnavailable:  offerCls.Unavailable,
		MetricsUnavailable: webErr != nil,
	}
	if v.Schemes == nil {
		v.Schemes = []model.LoyaltyScheme{}
	}
	if v.ActiveOffers == nil {
		v.ActiveOffers = []model.Offer{}
	}

	v.ActivePrograms = Stat{Label: "Active programs", Delta: Delta{Direction: Flat}}
	if !schemeLs.Unavailable {
		active := 0
		for _, s := range schemeLs.Schemes {
			if s.IsActive {
				active++
			}
		}
		v.ActivePrograms.Available = true
		v.ActivePrograms.Value = decimal.NewFromInt(int64(active))
	}

	v.Customers = Stat{Label: "Customers", Delta: Delta{Direction: Flat}}
	v.RewardsGiven = Stat{Label: "Rewards given", Delta: Delta{Direction: Flat}}
	v.LoyaltyValue = Stat{Label: "Loyalty value", Delta: Delta{Direction: Flat}}
	if webErr != nil {
		a.logger.Warn("loading dashboard metrics failed", "err", webErr)
		return v
	}

	customers := web.Float("totalCustomers", "customerCount", "customers")
	prevCustomers := web.Float("lastMonthCustomers", "previousCustomers")
	v.Customers = newStat(v.Customers.Label, decimal.NewFromFloat(customers), NewDelta(customers, prevCustomers))

	rewards := web.Int("pointsRedeemed", "rewardsRedeemed")
	if raw, ok := web.Any("total_free_stamps", "freeStamps"); ok {
		rewards += SumFreeStamps(raw)
	}
	prevRewards := web.Int("lastMonthRewards", "previousRewards")
	if raw, ok := web.Any("last_month_total_free_stamps", "last_month_free_stamps", "lastMonthFreeStamps"); ok {
		prevRewards += SumFreeStamps(raw)
	}
	v.RewardsGiven = newStat(v.RewardsGiven.Label, decimal.NewFromInt(int64(rewards)),
		NewDelta(float64(rewards), float64(prevRewards)))

	value := web.Decimal("loyaltyValue", "totalLoyaltyValue")
	prevValue := web.Decimal("lastMonthLoyaltyValue", "previousLoyaltyValue")
	v.LoyaltyValue = newStat(v.LoyaltyValue.Label, value.Round(2),
		NewDelta(value.InexactFloat64(), prevValue.InexactFloat64()))
	return v
}

func newStat(label string, value decimal.Decimal, d Delta) Stat {
	return Stat{Label: label, Available: true, Value: value, Delta: d}
}

func (a *Aggregator) loadMetrics(ctx context.Context) (gateway.Fields, error) {
	resp, err := a.metrics.WebInfo(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(gateway.EndpointWebInfo); err != nil {
		return nil, err
	}
	obj := resp.Object()
	if inner := obj.Object("data", "response"); inner != nil {
		return inner, nil
	}
	if obj == nil {
		return gateway.Fields{}, nil
	}
	return obj, nil
}
