// Package model holds the domain types shared by the gateway, the managers
// and the HTTP surfaces.
package model

// BusinessProfile is the shop profile returned by OTP validation.
type BusinessProfile struct {
	Name        string `json:"name"`
	Logo        string `json:"logo,omitempty"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

// Session is the authenticated state of one shopkeeper.
// A session either has no token, or a token bound to exactly one user id.
type Session struct {
	AuthToken string          `json:"token,omitempty"`
	UserID    int             `json:"userID,omitempty"`
	Business  BusinessProfile `json:"business"`
}

// Authenticated reports whether the session carries a usable token.
func (s Session) Authenticated() bool {
	return s.AuthToken != "" && s.UserID > 0
}

// PendingOTP is the transient state kept between OTP generation and validation.
type PendingOTP struct {
	TempUserID  int    `json:"tempUserID"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

// Empty reports whether no OTP flow is in progress.
func (p PendingOTP) Empty() bool {
	return p.TempUserID == 0
}
