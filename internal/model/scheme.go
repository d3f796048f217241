package model

import "time"

// SchemeType is the reward mechanism of a loyalty scheme.
type SchemeType string

const (
	SchemePoints   SchemeType = "POINTS"
	SchemeStamps   SchemeType = "STAMPS"
	SchemeDiscount SchemeType = "DISCOUNT"
)

// Remote numeric ids for scheme types.
const (
	schemeTypeIDPoints   = 1
	schemeTypeIDDiscount = 2
	schemeTypeIDStamps   = 3
)

// SchemeTypeFromID maps the remote loyaltySchemeTypeId.
func SchemeTypeFromID(id int) (SchemeType, bool) {
	switch id {
	case schemeTypeIDPoints:
		return SchemePoints, true
	case schemeTypeIDDiscount:
		return SchemeDiscount, true
	case schemeTypeIDStamps:
		return SchemeStamps, true
	default:
		return "", false
	}
}

// ID returns the remote numeric id for the type, or 0 if unknown.
func (t SchemeType) ID() int {
	switch t {
	case SchemePoints:
		return schemeTypeIDPoints
	case SchemeDiscount:
		return schemeTypeIDDiscount
	case SchemeStamps:
		return schemeTypeIDStamps
	default:
		return 0
	}
}

// LoyaltyScheme is a recurring points, stamps or discount reward program.
type LoyaltyScheme struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	Type             SchemeType `json:"schemeType"`
	AmountSpend      float64    `json:"amountSpend"`
	PointsCollected  int        `json:"pointsCollected"`
	PointsRedeem     int        `json:"pointsRedeem"`
	AmountFromPoints float64    `json:"amountFromPoints"`
	RedeemFrequency  int        `json:"redeemFrequency"`
	StampsToCollect  int        `json:"stampsToCollect"`
	FreeItems        int        `json:"freeItems"`
	MonthsExpire     int        `json:"monthsExpire"`
	ReturnPolicyDays int        `json:"returnPolicyDays"`
	ValidFromDate    time.Time  `json:"validFromDate"`
	IsActive         bool       `json:"isActive"`
	MemberCount      int        `json:"memberCount"`
}
