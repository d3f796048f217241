package localapi

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrCodeInvalid is returned for a wrong, missing or used code.
	ErrCodeInvalid = errors.New("localapi: invalid verification code")
	// ErrCodeExpired is returned when the code's lifetime has passed.
	ErrCodeExpired = errors.New("localapi: verification code expired")
	// ErrTooManyAttempts is returned once the attempt limit is reached.
	ErrTooManyAttempts = errors.New("localapi: too many attempts")
)

const (
	demoCodeDigits   = 6
	demoCodeTTL      = 5 * time.Minute
	demoMaxAttempts  = 5
	demoPurgeEvery   = time.Minute
	demoPurgeTimeout = 10 * time.Second
)

// OTPService issues and checks demo verification codes. Codes are never
// stored in clear.
type OTPService struct {
	repo   Repository
	now    func() time.Time
	cost   int
	logger *slog.Logger
}

// OTPOption configures an OTPService.
type OTPOption func(*OTPService)

// WithOTPClock overrides the time source.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) { s.now = now }
}

// WithHashCost sets the bcrypt cost.
func WithHashCost(cost int) OTPOption {
	return func(s *OTPService) { s.cost = cost }
}

// WithOTPLogger sets the logger.
func WithOTPLogger(l *slog.Logger) OTPOption {
	return func(s *OTPService) { s.logger = l }
}

// NewOTPService creates the service.
func NewOTPService(repo Repository, opts ...OTPOption) *OTPService {
	s := &OTPService{repo: repo, now: time.Now, cost: bcrypt.DefaultCost, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomCode() (string, error) {
	limit := big.NewInt(1)
	for range demoCodeDigits {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", demoCodeDigits, n), nil
}

// Send issues a fresh code for phone, replacing any pending one. The code is
// returned so the demo can display it; nothing is texted.
func (s *OTPService) Send(ctx context.Context, phone string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing code: %w", err)
	}
	otp := DemoOTP{Phone: phone, CodeHash: hash, ExpiresAt: s.now().Add(demoCodeTTL)}
	if err := s.repo.SaveOTP(ctx, otp); err != nil {
		return "", err
	}
	s.logger.Info("demo code issued", "expires_at", otp.ExpiresAt)
	return code, nil
}

// Verify checks code for phone. A correct code is consumed.
func (s *OTPService) Verify(ctx context.Context, phone, code string) error {
	otp, err := s.repo.GetOTP(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return ErrCodeInvalid
	}
	if err != nil {
		return err
	}
	if s.now().After(otp.ExpiresAt) {
		if err := s.repo.DeleteOTP(ctx, phone); err != nil {
			s.logger.Warn("deleting expired demo code failed", "err", err)
		}
		return ErrCodeExpired
	}
	if otp.Attempts >= demoMaxAttempts {
		return ErrTooManyAttempts
	}
	if bcrypt.CompareHashAndPassword(otp.CodeHash, []byte(code)) != nil {
		otp.Attempts++
		if err := s.repo.SaveOTP(ctx, otp); err != nil {
			return err
		}
		if otp.Attempts >= demoMaxAttempts {
			return ErrTooManyAttempts
		}
		return ErrCodeInvalid
	}
	return s.repo.DeleteOTP(ctx, phone)
}

// Purge removes expired codes.
func (s *OTPService) Purge(ctx context.Context) (int, error) {
	return s.repo.PurgeOTPs(ctx, s.now())
}

// StartPurger runs Purge every interval (every minute when interval is 0)
// until the returned scheduler is shut down.
func StartPurger(svc *OTPService, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = demoPurgeEvery
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), demoPurgeTimeout)
			defer cancel()
			n, err := svc.Purge(ctx)
			if err != nil {
				svc.logger.Warn("purging demo codes failed", "err", err)
				return
			}
			if n > 0 {
				svc.logger.Info("purged expired demo codes", "count", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("scheduling purge: %w", err)
	}
	sched.Start()
	return sched, nil
}
