package store

import "time"

// User is a shop account keyed by phone number. OTP holds the last issued
// login code until it is used or expires.
type User struct {
	ID           int       `json:"userID"`
	CountryCode  string    `json:"countryCode"`
	MobileNumber string    `json:"mobileNumber"`
	BusinessName string    `json:"businessName"`
	Logo         string    `json:"logo,omitempty"`
	OTP          string    `json:"otp,omitempty"`
	OTPExpires   time.Time `json:"otpExpires,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Offer is a stored promotional offer. ValidFrom and ValidTo are wall-clock
// times in the twin's location.
type Offer struct {
	ID              int       `json:"offerID"`
	MapID           int       `json:"mapID"`
	UserID          int       `json:"userID"`
	Name            string    `json:"offerName"`
	Description     string    `json:"offerDescription"`
	TypeID          int       `json:"offerTypeID"`
	ItemsBuying     int       `json:"itemsBuying"`
	ItemsFree       int       `json:"itemsFree"`
	PercentDiscount int       `json:"percentDiscount"`
	CashDiscount    float64   `json:"cashDiscount"`
	MinimumSpend    float64   `json:"minimumSpend"`
	ValidFrom       time.Time `json:"validFrom"`
	ValidTo         time.Time `json:"validTo"`
	ExpireFlag      bool      `json:"expireFlag"`
	Views           int       `json:"views"`
	Redemptions     int       `json:"redemptions"`
	Customers       int       `json:"customers"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Scheme is a stored loyalty scheme. TypeID is 1 points, 2 discount, 3 stamps.
type Scheme struct {
	ID               int       `json:"loyaltySchemeId"`
	UserID           int       `json:"userID"`
	Name             string    `json:"loyaltySchemeName"`
	TypeID           int       `json:"loyaltySchemeTypeId"`
	AmountSpend      float64   `json:"amountSpend"`
	PointsCollected  int       `json:"pointsCollected"`
	PointsRedeem     int       `json:"pointsRedeem"`
	AmountFromPoints float64   `json:"amountFromPoints"`
	RedeemFrequency  int       `json:"redeemFrequency"`
	StampsToCollect  int       `json:"stampsToCollect"`
	FreeItems        int       `json:"freeItems"`
	MonthsExpire     int       `json:"monthsExpire"`
	ReturnPolicyDays int       `json:"returnPolicyDays"`
	ValidFromDate    string    `json:"validFromDate,omitempty"`
	ExpireFlag       bool      `json:"expireFlag"`
	MemberCount      int       `json:"memberCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Metrics is the per-user block served by web-info. FreeStamps maps scheme
// ids to free items issued.
type Metrics struct {
	UserID                int            `json:"userID"`
	TotalCustomers        int            `json:"totalCustomers"`
	LastMonthCustomers    int            `json:"lastMonthCustomers"`
	PointsRedeemed        int            `json:"pointsRedeemed"`
	LastMonthRewards      int            `json:"lastMonthRewards"`
	FreeStamps            map[string]int `json:"total_free_stamps,omitempty"`
	LastMonthFreeStamps   map[string]int `json:"last_month_total_free_stamps,omitempty"`
	LoyaltyValue          float64        `json:"loyaltyValue"`
	LastMonthLoyaltyValue float64        `json:"lastMonthLoyaltyValue"`
}

// Envelope shapes the list endpoints can answer with.
const (
	EnvelopeArray    = "array"
	EnvelopeData     = "data"
	EnvelopeResponse = "response"
	EnvelopeOffers   = "offers"
	EnvelopeNested   = "nested"
)

// Save-offer reply formats.
const (
	ReplyText = "text"
	ReplyJSON = "json"
)

// Settings are runtime switches that reproduce the remote API's
// inconsistent response shapes.
type Settings struct {
	OfferEnvelope  string `json:"offer_envelope"`
	SaveOfferReply string `json:"save_offer_reply"`
	OTPTTL         string `json:"otp_ttl"`
}

// DefaultSettings mirrors the shapes the production API was observed to use.
func DefaultSettings() Settings {
	return Settings{
		OfferEnvelope:  EnvelopeData,
		SaveOfferReply: ReplyText,
		OTPTTL:         "5m",
	}
}
