package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"launchline/internal/domain"
)

// outboxDeadLetterThreshold is the attempt count at which a failed entry is
// parked as dead instead of being retried.
const outboxDeadLetterThreshold = 8

// enqueueOutbox inserts a domain event into the outbox within the caller's
// transaction, so the event commits or rolls back together with the state
// change that produced it.
func enqueueOutbox(ctx context.Context, tx *sql.Tx, evt domain.DomainEvent) error {
	payload, err := domain.EncodeEventPayload(evt)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO outbox (id, event_type, payload, status, attempt_count, next_attempt_at, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, $4, '', $4, $4)
	`
	if _, err := tx.ExecContext(ctx, query, evt.ID, string(evt.Type), payload, evt.OccurredAt); err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	return nil
}

type outboxRepository struct {
	DB *sql.DB
}

// NewOutboxRepository returns a domain.OutboxRepository implemented with Postgres.
func NewOutboxRepository(db *sql.DB) domain.OutboxRepository {
	return &outboxRepository{DB: db}
}

func (r *outboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEntry, error) {
	query := `
		SELECT id, event_type, payload, status, attempt_count, next_attempt_at, last_error, created_at, updated_at
		FROM outbox
		WHERE status IN ('pending', 'failed') AND next_attempt_at <= $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.OutboxEntry
	for rows.Next() {
		e := &domain.OutboxEntry{}
		var eventType, status string
		if err := rows.Scan(&e.ID, &eventType, &e.Payload, &status, &e.AttemptCount, &e.NextAttemptAt, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.EventType = domain.EventType(eventType)
		e.Status = domain.OutboxStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.OutboxEntry{}
	}
	return entries, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE outbox
		SET status = 'sent', updated_at = $1
		WHERE id = $2
	`
	_, err := r.DB.ExecContext(ctx, query, at, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, attemptCount int, lastError string, nextAttemptAt time.Time) error {
	status := domain.OutboxFailed
	if attemptCount >= outboxDeadLetterThreshold {
		status = domain.OutboxDead
	}
	query := `
		UPDATE outbox
		SET status = $1, attempt_count = $2, last_error = $3, next_attempt_at = $4, updated_at = NOW()
		WHERE id = $5
	`
	_, err := r.DB.ExecContext(ctx, query, string(status), attemptCount, lastError, nextAttemptAt, id)
	return err
}
