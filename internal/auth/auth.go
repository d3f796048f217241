// Package auth drives the phone OTP login against the remote API and writes
// the resulting session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/session"
)

var (
	// ErrNoPendingOTP is returned when verifying without a prior code request.
	ErrNoPendingOTP = errors.New("auth: no verification code was requested")
	// ErrCodeRejected is returned when the remote does not issue a token.
	ErrCodeRejected = errors.New("auth: verification code rejected")
)

var (
	phonePattern   = regexp.MustCompile(`^[0-9]{6,15}$`)
	countryPattern = regexp.MustCompile(`^\+[0-9]{1,4}$`)
	codePattern    = regexp.MustCompile(`^[0-9]{4,6}$`)
)

// Gateway is the subset of the remote client used for login.
type Gateway interface {
	GenerateOTP(ctx context.Context, countryCode, mobile string) (gateway.OTPChallenge, error)
	ValidateOTP(ctx context.Context, tempUserID int, otp string) (gateway.OTPResult, error)
}

// Service runs the login flow.
type Service struct {
	gw     Gateway
	logger *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default.
func NewService(gw Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, logger: logger}
}

// NormalizePhone strips spaces, dashes and a leading trunk zero.
func NormalizePhone(phone string) string {
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	return strings.TrimPrefix(phone, "0")
}

// RequestCode asks the remote to text a code and remembers the pending login.
func (s *Service) RequestCode(ctx context.Context, st session.Store, countryCode, phone string) (gateway.OTPChallenge, error) {
	countryCode = strings.TrimSpace(countryCode)
	if !strings.HasPrefix(countryCode, "+") {
		countryCode = "+" + countryCode
	}
	if !countryPattern.MatchString(countryCode) {
		return gateway.OTPChallenge{}, model.Invalid("countryCode", "enter a valid country code")
	}
	phone = NormalizePhone(phone)
	if !phonePattern.MatchString(phone) {
		return gateway.OTPChallenge{}, model.Invalid("mobileNumber", "enter a valid mobile number")
	}

	ch, err := s.gw.GenerateOTP(ctx, countryCode, phone)
	if err != nil {
		return gateway.OTPChallenge{}, fmt.Errorf("requesting code: %w", err)
	}
	if ch.TempUserID <= 0 {
		return gateway.OTPChallenge{}, fmt.Errorf("%w: %s", ErrCodeRejected, ch.Message)
	}
	if err := st.SavePending(ctx, model.PendingOTP{TempUserID: ch.TempUserID, Phone: phone, CountryCode: countryCode}); err != nil {
		return gateway.OTPChallenge{}, fmt.Errorf("saving pending login: %w", err)
	}
	s.logger.Info("verification code requested", "temp_user_id", ch.TempUserID)
	return ch, nil
}

// Verify exchanges the code for a session and stores it.
func (s *Service) Verify(ctx context.Context, st session.Store, code string) (model.Session, error) {
	pending, err := st.LoadPending(ctx)
	if err != nil {
		return model.Session{}, fmt.Errorf("loading pending login: %w", err)
	}
	if pending.Empty() {
		return model.Session{}, ErrNoPendingOTP
	}
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return model.Session{}, model.Invalid("otp", "enter the code you received")
	}

	res, err := s.gw.ValidateOTP(ctx, pending.TempUserID, code)
	if err != nil {
		return model.Session{}, fmt.Errorf("verifying code: %w", err)
	}
	if res.Token == "" || res.UserID <= 0 {
		msg := res.Message
		if msg == "" {
			msg = "invalid code"
		}
		return model.Session{}, fmt.Errorf("%w: %s", ErrCodeRejected, msg)
	}

	sess := model.Session{AuthToken: res.Token, UserID: res.UserID, Business: res.Business}
	if sess.Business.Phone == "" {
		sess.Business.Phone = pending.Phone
	}
	if sess.Business.CountryCode == "" {
		sess.Business.CountryCode = pending.CountryCode
	}
	if err := st.Save(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("saving session: %w", err)
	}
	if err := st.ClearPending(ctx); err != nil {
		s.logger.Warn("clearing pending login failed", "err", err)
	}
	s.logger.Info("signed in", "user_id", sess.UserID)
	return sess, nil
}

// Logout clears the session and any pending login.
func (s *Service) Logout(ctx context.Context, st session.Store) error {
	if err := st.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
