package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OfferType identifies one of the six promotional offer kinds.
type OfferType int

const (
	OfferBOGO         OfferType = 1
	OfferPercentage   OfferType = 2
	OfferCash         OfferType = 3
	OfferMinimumSpend OfferType = 4
	OfferMultiBuy     OfferType = 5
	OfferFlashSale    OfferType = 6
)

// Valid reports whether t is a known offer type.
func (t OfferType) Valid() bool {
	return t >= OfferBOGO && t <= OfferFlashSale
}

func (t OfferType) String() string {
	switch t {
	case OfferBOGO:
		return "bogo"
	case OfferPercentage:
		return "percentage"
	case OfferCash:
		return "cash"
	case OfferMinimumSpend:
		return "minimum_spend"
	case OfferMultiBuy:
		return "multi_buy"
	case OfferFlashSale:
		return "flash_sale"
	default:
		return "unknown"
	}
}

// TimeStatus is the position of an offer relative to now.
type TimeStatus string

const (
	StatusPast    TimeStatus = "past"
	StatusPresent TimeStatus = "present"
	StatusFuture  TimeStatus = "future"
	// StatusUnknown marks offers whose window and remote status could not be read.
	StatusUnknown TimeStatus = ""
)

// ParseTimeStatus accepts the remote status in any letter case.
func ParseTimeStatus(s string) TimeStatus {
	switch TimeStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPast:
		return StatusPast
	case StatusPresent:
		return StatusPresent
	case StatusFuture:
		return StatusFuture
	default:
		return StatusUnknown
	}
}

// Discount carries every discount field; only the group selected by the
// offer type is meaningful.
type Discount struct {
	ItemsBuying     int             `json:"itemsBuying"`
	ItemsFree       int             `json:"itemsFree"`
	PercentDiscount int             `json:"percentDiscount"`
	CashDiscount    decimal.Decimal `json:"cashDiscount"`
	MinimumSpend    decimal.Decimal `json:"minimumSpend"`
}

// Offer is a time-boxed promotional discount.
type Offer struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	OfferTypeID     OfferType  `json:"offerTypeId"`
	Discount        Discount   `json:"discount"`
	ValidFrom       time.Time  `json:"validFrom"`
	ValidUntil      time.Time  `json:"validUntil"`
	IsActive        bool       `json:"isActive"`
	TimeStatus      TimeStatus `json:"timeStatus"`
	MapID           int        `json:"mapId,omitempty"`
	RedemptionCount int        `json:"redemptionCount"`
	Label           string     `json:"label"`
}

// OfferStats is the per-offer statistics block returned by the detail view.
type OfferStats struct {
	Views       int `json:"views"`
	Redemptions int `json:"redemptions"`
	Customers   int `json:"customers"`
}

// OfferDetail is an offer with its statistics.
type OfferDetail struct {
	Offer
	Stats OfferStats `json:"stats"`
}
