package localapi_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hichers/hichers/internal/localapi"
	"github.com/hichers/hichers/pkg/store"
)

func newOTP(t *testing.T) (*localapi.OTPService, *localapi.MemoryRepository, *store.Clock) {
	t.Helper()
	clock := store.NewClock()
	repo := localapi.NewMemoryRepository(clock.Now)
	svc := localapi.NewOTPService(repo, localapi.WithOTPClock(clock.Now), localapi.WithHashCost(bcrypt.MinCost))
	return svc, repo, clock
}

func TestOTPStoresOnlyHash(t *testing.T) {
	svc, repo, _ := newOTP(t)
	ctx := context.Background()

	code, err := svc.Send(ctx, "+447700900123")
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	otp, err := repo.GetOTP(ctx, "+447700900123")
	require.NoError(t, err)
	assert.NotContains(t, string(otp.CodeHash), code)
	assert.NoError(t, bcrypt.CompareHashAndPassword(otp.CodeHash, []byte(code)))
}

func TestOTPResendReplacesCode(t *testing.T) {
	svc, _, _ := newOTP(t)
	ctx := context.Background()

	first, err := svc.Send(ctx, "+447700900123")
	require.NoError(t, err)
	second, err := svc.Send(ctx, "+447700900123")
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, svc.Verify(ctx, "+447700900123", first), localapi.ErrCodeInvalid)
	}
	assert.NoError(t, svc.Verify(ctx, "+447700900123", second))
}

func TestOTPAttemptLimit(t *testing.T) {
	svc, _, _ := newOTP(t)
	ctx := context.Background()

	code, err := svc.Send(ctx, "+15550001111")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, svc.Verify(ctx, "+15550001111", wrong), localapi.ErrCodeInvalid)
	}
	assert.ErrorIs(t, svc.Verify(ctx, "+15550001111", wrong), localapi.ErrTooManyAttempts)
	assert.ErrorIs(t, svc.Verify(ctx, "+15550001111", code), localapi.ErrTooManyAttempts,
		"the right code is refused once the limit is hit")
}

func TestOTPUnknownPhone(t *testing.T) {
	svc, _, _ := newOTP(t)
	assert.ErrorIs(t, svc.Verify(context.Background(), "+15550002222", "123456"), localapi.ErrCodeInvalid)
}

func TestOTPPurge(t *testing.T) {
	svc, repo, clock := newOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "+15550000001")
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)
	_, err = svc.Send(ctx, "+15550000002")
	require.NoError(t, err)

	clock.Advance(3 * time.Minute)
	n, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetOTP(ctx, "+15550000001")
	assert.ErrorIs(t, err, localapi.ErrNotFound)
	_, err = repo.GetOTP(ctx, "+15550000002")
	assert.NoError(t, err)
}

func TestStartPurgerRunsJob(t *testing.T) {
	svc, repo, clock := newOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "+15550000003")
	require.NoError(t, err)
	clock.Advance(time.Hour)

	sched, err := localapi.StartPurger(svc, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { sched.Shutdown() })

	assert.Eventually(t, func() bool {
		_, err := repo.GetOTP(ctx, "+15550000003")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}
