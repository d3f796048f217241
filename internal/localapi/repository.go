package localapi

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record, or the business a record
	// refers to, does not exist.
	ErrNotFound = errors.New("localapi: not found")
	// ErrConflict is returned when a unique value is already taken.
	ErrConflict = errors.New("localapi: already exists")
)

// Repository is the storage contract of the local backend. Handlers and the
// OTP service depend only on this interface.
type Repository interface {
	CreateBusiness(ctx context.Context, b *Business) error
	GetBusiness(ctx context.Context, id int) (Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)

	// CreateProgram returns ErrNotFound when the business does not exist.
	CreateProgram(ctx context.Context, p *LoyaltyProgram) error
	// ListPrograms lists programs of one business, or all when businessID is 0.
	ListPrograms(ctx context.Context, businessID int) ([]LoyaltyProgram, error)

	// CreateCustomer returns ErrNotFound when the business does not exist.
	CreateCustomer(ctx context.Context, c *Customer) error
	// ListCustomers lists customers of one business, or all when businessID is 0.
	ListCustomers(ctx context.Context, businessID int) ([]Customer, error)

	// Subscribe returns ErrConflict when the email is already subscribed.
	Subscribe(ctx context.Context, s *Subscription) error
	SaveContact(ctx context.Context, m *ContactMessage) error

	// SaveOTP replaces any pending code for the phone.
	SaveOTP(ctx context.Context, otp DemoOTP) error
	GetOTP(ctx context.Context, phone string) (DemoOTP, error)
	DeleteOTP(ctx context.Context, phone string) error
	// PurgeOTPs deletes codes that expired before t and reports how many.
	PurgeOTPs(ctx context.Context, t time.Time) (int, error)
}
