package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/stretchr/testify/require"
)

func TestLoginCodeRepository_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code is deleted and consumed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id FROM login_codes`).
			WithArgs("alice@example.com", "hash-1", 5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("code-1"))
		mock.ExpectExec(`DELETE FROM login_codes WHERE id = \$1`).
			WithArgs("code-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewLoginCodeRepository(db)
		consumed, err := repo.Consume(ctx, "alice@example.com", "hash-1", 5)
		require.NoError(t, err)
		require.True(t, consumed)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matching live code", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id FROM login_codes`).
			WithArgs("alice@example.com", "hash-wrong", 5).
			WillReturnError(sql.ErrNoRows)

		repo := NewLoginCodeRepository(db)
		consumed, err := repo.Consume(ctx, "alice@example.com", "hash-wrong", 5)
		require.NoError(t, err)
		require.False(t, consumed)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoginCodeRepository_RecordFailedAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("returns remaining attempts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE login_codes\s+SET attempts = attempts \+ 1`).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))

		repo := NewLoginCodeRepository(db)
		left, err := repo.RecordFailedAttempt(ctx, "alice@example.com", 5)
		require.NoError(t, err)
		require.Equal(t, 2, left)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("never negative", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE login_codes\s+SET attempts = attempts \+ 1`).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(7))

		repo := NewLoginCodeRepository(db)
		left, err := repo.RecordFailedAttempt(ctx, "alice@example.com", 5)
		require.NoError(t, err)
		require.Equal(t, 0, left)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no live code is a no-op", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`UPDATE login_codes\s+SET attempts = attempts \+ 1`).
			WithArgs("alice@example.com").
			WillReturnError(sql.ErrNoRows)

		repo := NewLoginCodeRepository(db)
		left, err := repo.RecordFailedAttempt(ctx, "alice@example.com", 5)
		require.NoError(t, err)
		require.Equal(t, 0, left)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoginCodeRepository_DeleteExpiredBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM login_codes WHERE expires_at < \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	repo := NewLoginCodeRepository(db)
	n, err := repo.DeleteExpiredBefore(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
