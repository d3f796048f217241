package offers

import (
	"fmt"
	"time"

	"github.com/hichers/hichers/internal/model"
	"github.com/shopspring/decimal"
)

// StatusAt places now relative to the window [from, until]. As now advances
// the result only moves FUTURE, PRESENT, PAST.
func StatusAt(from, until, now time.Time) model.TimeStatus {
	switch {
	case now.Before(from):
		return model.StatusFuture
	case !now.After(until):
		return model.StatusPresent
	default:
		return model.StatusPast
	}
}

// Classification partitions offers by time status.
type Classification struct {
	Past    []model.Offer `json:"past"`
	Present []model.Offer `json:"present"`
	Future  []model.Offer `json:"future"`
	// Defaulted counts offers with no readable status that were placed in Present.
	Defaulted int `json:"defaulted"`
	// Unavailable is set when the list could not be loaded.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Total returns the number of classified offers.
func (c Classification) Total() int {
	return len(c.Past) + len(c.Present) + len(c.Future)
}

// Classify places every offer in exactly one bucket. Offers whose status is
// unknown are shown as running (fail-open) and counted in Defaulted.
func Classify(offers []model.Offer) Classification {
	c := Classification{
		Past:    []model.Offer{},
		Present: []model.Offer{},
		Future:  []model.Offer{},
	}
	for _, o := range offers {
		switch o.TimeStatus {
		case model.StatusPast:
			c.Past = append(c.Past, o)
		case model.StatusFuture:
			c.Future = append(c.Future, o)
		case model.StatusPresent:
			c.Present = append(c.Present, o)
		default:
			c.Present = append(c.Present, o)
			c.Defaulted++
		}
	}
	return c
}

// DiscountLabel renders the short discount text shown on offer cards.
// Unknown types have no label.
func DiscountLabel(t model.OfferType, d model.Discount) string {
	switch t {
	case model.OfferBOGO:
		return fmt.Sprintf("Buy %d Get %d", d.ItemsBuying, d.ItemsFree)
	case model.OfferPercentage:
		return fmt.Sprintf("%d%%", d.PercentDiscount)
	case model.OfferCash:
		return "£" + money(d.CashDiscount)
	case model.OfferMinimumSpend:
		return fmt.Sprintf("£%s off £%s+", money(d.CashDiscount), money(d.MinimumSpend))
	case model.OfferMultiBuy:
		return fmt.Sprintf("%d for £%s", d.ItemsBuying, money(d.CashDiscount))
	case model.OfferFlashSale:
		return fmt.Sprintf("Flash %d%%", d.PercentDiscount)
	default:
		return ""
	}
}

func money(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0)
	}
	return d.StringFixed(2)
}
