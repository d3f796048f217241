package localapi_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hichers/hichers/internal/localapi"
)

// postgresRepo connects to DATABASE_URL, migrates it and empties every table.
func postgresRepo(t *testing.T) *localapi.PostgresRepository {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	require.NoError(t, localapi.Migrate(url))

	ctx := context.Background()
	pool, err := localapi.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE demo_otps, contact_messages, newsletter_subscriptions,
		customers, loyalty_programs, businesses RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return localapi.NewPostgresRepository(pool)
}

func TestPostgresRepository(t *testing.T) {
	repo := postgresRepo(t)
	ctx := context.Background()

	b := localapi.Business{Name: "Bean There", Category: "cafe"}
	require.NoError(t, repo.CreateBusiness(ctx, &b))
	assert.Equal(t, 1, b.ID)
	assert.False(t, b.CreatedAt.IsZero())

	got, err := repo.GetBusiness(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bean There", got.Name)
	_, err = repo.GetBusiness(ctx, 99)
	assert.ErrorIs(t, err, localapi.ErrNotFound)

	p := localapi.LoyaltyProgram{BusinessID: b.ID, Name: "Card", Type: "stamps", RewardThreshold: 8, IsActive: true}
	require.NoError(t, repo.CreateProgram(ctx, &p))
	orphan := localapi.LoyaltyProgram{BusinessID: 99, Name: "Orphan", Type: "points"}
	assert.ErrorIs(t, repo.CreateProgram(ctx, &orphan), localapi.ErrNotFound)

	progs, err := repo.ListPrograms(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, progs, 1)
	assert.Equal(t, 8, progs[0].RewardThreshold)

	c := localapi.Customer{BusinessID: b.ID, Name: "Ada", Points: 12}
	require.NoError(t, repo.CreateCustomer(ctx, &c))
	all, err := repo.ListCustomers(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Subscribe(ctx, &localapi.Subscription{Email: "ada@example.com"}))
	assert.ErrorIs(t, repo.Subscribe(ctx, &localapi.Subscription{Email: "ADA@example.com"}), localapi.ErrConflict)

	require.NoError(t, repo.SaveContact(ctx, &localapi.ContactMessage{Name: "Ada", Email: "ada@example.com", Message: "hi"}))

	now := time.Now()
	require.NoError(t, repo.SaveOTP(ctx, localapi.DemoOTP{Phone: "+1555", CodeHash: []byte("h1"), ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.SaveOTP(ctx, localapi.DemoOTP{Phone: "+1556", CodeHash: []byte("h2"), ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, repo.SaveOTP(ctx, localapi.DemoOTP{Phone: "+1556", CodeHash: []byte("h3"), ExpiresAt: now.Add(time.Minute), Attempts: 2}))

	otp, err := repo.GetOTP(ctx, "+1556")
	require.NoError(t, err)
	assert.Equal(t, []byte("h3"), otp.CodeHash)
	assert.Equal(t, 2, otp.Attempts)

	n, err := repo.PurgeOTPs(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, repo.DeleteOTP(ctx, "+1556"))
	_, err = repo.GetOTP(ctx, "+1556")
	assert.ErrorIs(t, err, localapi.ErrNotFound)
}
