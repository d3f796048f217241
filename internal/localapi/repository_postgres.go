package localapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the repository translates.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// PostgresRepository stores the local backend in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository wraps a connected pool. Run Migrate first.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// translate maps constraint violations onto the repository sentinels.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return ErrNotFound
		case pgUniqueViolation:
			return ErrConflict
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *PostgresRepository) CreateBusiness(ctx context.Context, b *Business) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO businesses (name, email, phone, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, b.Name, b.Email, b.Phone, b.Category).Scan(&b.ID, &b.CreatedAt)
	return translate("inserting business", err)
}

func (r *PostgresRepository) GetBusiness(ctx context.Context, id int) (Business, error) {
	var b Business
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, phone, category, created_at
		FROM businesses WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Category, &b.CreatedAt)
	if err != nil {
		return Business{}, translate("loading business", err)
	}
	return b, nil
}

func (r *PostgresRepository) ListBusinesses(ctx context.Context) ([]Business, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, phone, category, created_at
		FROM businesses ORDER BY id
	`)
	if err != nil {
		return nil, translate("listing businesses", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Business, error) {
		var b Business
		err := row.Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Category, &b.CreatedAt)
		return b, err
	})
	return out, translate("listing businesses", err)
}

func (r *PostgresRepository) CreateProgram(ctx context.Context, p *LoyaltyProgram) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO loyalty_programs (business_id, name, program_type, points_per_pound, reward_threshold, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, p.BusinessID, p.Name, p.Type, p.PointsPerPound, p.RewardThreshold, p.IsActive).Scan(&p.ID, &p.CreatedAt)
	return translate("inserting loyalty program", err)
}

func (r *PostgresRepository) ListPrograms(ctx context.Context, businessID int) ([]LoyaltyProgram, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_id, name, program_type, points_per_pound, reward_threshold, is_active, created_at
		FROM loyalty_programs
		WHERE $1 = 0 OR business_id = $1
		ORDER BY id
	`, businessID)
	if err != nil {
		return nil, translate("listing loyalty programs", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LoyaltyProgram, error) {
		var p LoyaltyProgram
		err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Type, &p.PointsPerPound, &p.RewardThreshold, &p.IsActive, &p.CreatedAt)
		return p, err
	})
	return out, translate("listing loyalty programs", err)
}

func (r *PostgresRepository) CreateCustomer(ctx context.Context, c *Customer) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO customers (business_id, name, email, phone, points)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, c.BusinessID, c.Name, c.Email, c.Phone, c.Points).Scan(&c.ID, &c.CreatedAt)
	return translate("inserting customer", err)
}

func (r *PostgresRepository) ListCustomers(ctx context.Context, businessID int) ([]Customer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_id, name, email, phone, points, created_at
		FROM customers
		WHERE $1 = 0 OR business_id = $1
		ORDER BY id
	`, businessID)
	if err != nil {
		return nil, translate("listing customers", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Customer, error) {
		var c Customer
		err := row.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.Points, &c.CreatedAt)
		return c, err
	})
	return out, translate("listing customers", err)
}

func (r *PostgresRepository) Subscribe(ctx context.Context, s *Subscription) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO newsletter_subscriptions (email)
		VALUES (lower($1))
		RETURNING id, created_at
	`, s.Email).Scan(&s.ID, &s.CreatedAt)
	return translate("inserting subscription", err)
}

func (r *PostgresRepository) SaveContact(ctx context.Context, m *ContactMessage) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO contact_messages (name, email, company, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.Name, m.Email, m.Company, m.Message).Scan(&m.ID, &m.CreatedAt)
	return translate("inserting contact message", err)
}

func (r *PostgresRepository) SaveOTP(ctx context.Context, otp DemoOTP) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO demo_otps (phone, code_hash, expires_at, attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at, attempts = EXCLUDED.attempts
	`, otp.Phone, otp.CodeHash, otp.ExpiresAt, otp.Attempts)
	return translate("saving demo otp", err)
}

func (r *PostgresRepository) GetOTP(ctx context.Context, phone string) (DemoOTP, error) {
	otp := DemoOTP{Phone: phone}
	err := r.db.QueryRow(ctx, `
		SELECT code_hash, expires_at, attempts FROM demo_otps WHERE phone = $1
	`, phone).Scan(&otp.CodeHash, &otp.ExpiresAt, &otp.Attempts)
	if err != nil {
		return DemoOTP{}, translate("loading demo otp", err)
	}
	return otp, nil
}

func (r *PostgresRepository) DeleteOTP(ctx context.Context, phone string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM demo_otps WHERE phone = $1`, phone)
	return translate("deleting demo otp", err)
}

func (r *PostgresRepository) PurgeOTPs(ctx context.Context, t time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM demo_otps WHERE expires_at < $1`, t)
	if err != nil {
		return 0, translate("purging demo otps", err)
	}
	return int(tag.RowsAffected()), nil
}
