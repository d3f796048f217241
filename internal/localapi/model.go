// Package localapi is the dashboard's own CRUD backend: businesses, loyalty
// programs, customers, newsletter sign-ups, contact messages and a demo OTP
// flow, stored in PostgreSQL or in memory.
package localapi

import "time"

// Business is a shop registered with the local backend.
type Business struct {
	ID        int       `json:"id"`
	Name      string    `json:"name" validate:"required,max=120"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Phone     string    `json:"phone" validate:"omitempty,e164"`
	Category  string    `json:"category" validate:"max=60"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoyaltyProgram is a business's locally recorded reward program.
type LoyaltyProgram struct {
	ID              int       `json:"id"`
	BusinessID      int       `json:"businessId" validate:"required,gt=0"`
	Name            string    `json:"name" validate:"required,max=100"`
	Type            string    `json:"type" validate:"required,oneof=points stamps discount"`
	PointsPerPound  float64   `json:"pointsPerPound" validate:"gte=0"`
	RewardThreshold int       `json:"rewardThreshold" validate:"gte=0"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Customer is a member of a business's programs.
type Customer struct {
	ID         int       `json:"id"`
	BusinessID int       `json:"businessId" validate:"required,gt=0"`
	Name       string    `json:"name" validate:"required,max=120"`
	Email      string    `json:"email" validate:"omitempty,email"`
	Phone      string    `json:"phone" validate:"omitempty,e164"`
	Points     int       `json:"points" validate:"gte=0"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Subscription is a newsletter sign-up. Emails are unique.
type Subscription struct {
	ID        int       `json:"id"`
	Email     string    `json:"email" validate:"required,email"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContactMessage is a message left through the contact form.
type ContactMessage struct {
	ID        int       `json:"id"`
	Name      string    `json:"name" validate:"required,max=120"`
	Email     string    `json:"email" validate:"required,email"`
	Company   string    `json:"company" validate:"max=120"`
	Message   string    `json:"message" validate:"required,max=2000"`
	CreatedAt time.Time `json:"createdAt"`
}

// DemoOTP is a pending demo verification code. Only the bcrypt hash of the
// code is kept.
type DemoOTP struct {
	Phone     string
	CodeHash  []byte
	ExpiresAt time.Time
	Attempts  int
}
