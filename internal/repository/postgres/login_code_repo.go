package postgres

import (
	"context"
	"database/sql"
	"time"

	"launchline/internal/domain"
)

type loginCodeRepository struct {
	DB *sql.DB
}

// NewLoginCodeRepository returns a domain.LoginCodeRepository implemented with Postgres.
func NewLoginCodeRepository(db *sql.DB) domain.LoginCodeRepository {
	return &loginCodeRepository{DB: db}
}

func (r *loginCodeRepository) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO login_codes (email, code_hash, attempts, expires_at)
		VALUES ($1, $2, 0, $3)
	`
	_, err := r.DB.ExecContext(ctx, query, email, codeHash, expiresAt)
	return err
}

func (r *loginCodeRepository) Consume(ctx context.Context, email, codeHash string, maxAttempts int) (consumed bool, err error) {
	var id string
	query := `
		SELECT id FROM login_codes
		WHERE email = $1 AND code_hash = $2 AND expires_at > NOW() AND attempts < $3
		LIMIT 1
	`
	err = r.DB.QueryRowContext(ctx, query, email, codeHash, maxAttempts).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	deleteQuery := `DELETE FROM login_codes WHERE id = $1`
	_, err = r.DB.ExecContext(ctx, deleteQuery, id)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *loginCodeRepository) RecordFailedAttempt(ctx context.Context, email string, maxAttempts int) (attemptsLeft int, err error) {
	// Bump the counter on the newest live code for the email. Once attempts
	// reaches the cap the code no longer matches Consume's filter.
	query := `
		UPDATE login_codes
		SET attempts = attempts + 1
		WHERE id = (
			SELECT id FROM login_codes
			WHERE email = $1 AND expires_at > NOW()
			ORDER BY expires_at DESC
			LIMIT 1
		)
		RETURNING attempts
	`
	var attempts int
	err = r.DB.QueryRowContext(ctx, query, email).Scan(&attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	left := maxAttempts - attempts
	if left < 0 {
		left = 0
	}
	return left, nil
}

func (r *loginCodeRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM login_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
