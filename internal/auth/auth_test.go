package auth

import (
	"context"
	"testing"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	generated []string
	challenge gateway.OTPChallenge
	result    gateway.OTPResult
	gotCode   string
	gotUser   int
}

func (f *fakeGateway) GenerateOTP(ctx context.Context, countryCode, mobile string) (gateway.OTPChallenge, error) {
	f.generated = append(f.generated, countryCode+" "+mobile)
	return f.challenge, nil
}

func (f *fakeGateway) ValidateOTP(ctx context.Context, tempUserID int, otp string) (gateway.OTPResult, error) {
	f.gotUser, f.gotCode = tempUserID, otp
	return f.result, nil
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{
		challenge: gateway.OTPChallenge{TempUserID: 77, Message: "OTP sent"},
		result:    gateway.OTPResult{Token: "tok", UserID: 77, Business: model.BusinessProfile{Name: "Corner Cafe"}},
	}
	st := session.NewMemoryStore()
	svc := NewService(gw, nil)

	_, err := svc.RequestCode(ctx, st, "44", "07700 900-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"+44 7700900123"}, gw.generated)

	pending, _ := st.LoadPending(ctx)
	assert.Equal(t, 77, pending.TempUserID)

	sess, err := svc.Verify(ctx, st, "123456")
	require.NoError(t, err)
	assert.Equal(t, 77, gw.gotUser)
	assert.Equal(t, "123456", gw.gotCode)
	assert.Equal(t, "Corner Cafe", sess.Business.Name)
	assert.Equal(t, "7700900123", sess.Business.Phone, "phone falls back to the pending login")

	stored, _ := st.Load(ctx)
	assert.True(t, stored.Authenticated())
	pending, _ = st.LoadPending(ctx)
	assert.True(t, pending.Empty())

	require.NoError(t, svc.Logout(ctx, st))
	stored, _ = st.Load(ctx)
	assert.False(t, stored.Authenticated())
}

func TestRequestCodeValidation(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, nil)
	st := session.NewMemoryStore()

	_, err := svc.RequestCode(context.Background(), st, "+44", "12ab")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mobileNumber", verr.Field)

	_, err = svc.RequestCode(context.Background(), st, "+44444", "7700900123")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "countryCode", verr.Field)
	assert.Empty(t, gw.generated)
}

func TestRequestCodeRejected(t *testing.T) {
	gw := &fakeGateway{challenge: gateway.OTPChallenge{Message: "Number blocked"}}
	_, err := NewService(gw, nil).RequestCode(context.Background(), session.NewMemoryStore(), "+44", "7700900123")
	assert.ErrorIs(t, err, ErrCodeRejected)
	assert.Contains(t, err.Error(), "Number blocked")
}

func TestVerifyWithoutPending(t *testing.T) {
	_, err := NewService(&fakeGateway{}, nil).Verify(context.Background(), session.NewMemoryStore(), "1234")
	assert.ErrorIs(t, err, ErrNoPendingOTP)
}

func TestVerifyRejectedCode(t *testing.T) {
	ctx := context.Background()
	st := session.NewMemoryStore()
	require.NoError(t, st.SavePending(ctx, model.PendingOTP{TempUserID: 5}))
	gw := &fakeGateway{result: gateway.OTPResult{Message: "Invalid OTP"}}

	_, err := NewService(gw, nil).Verify(ctx, st, "9999")
	assert.ErrorIs(t, err, ErrCodeRejected)

	stored, _ := st.Load(ctx)
	assert.False(t, stored.Authenticated())
	pending, _ := st.LoadPending(ctx)
	assert.False(t, pending.Empty(), "a rejected code keeps the pending login for another attempt")
}
