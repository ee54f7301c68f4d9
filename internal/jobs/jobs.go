package jobs

import (
	"context"
	"log/slog"
	"time"

	"launchline/internal/domain"
)

const (
	outboxBatchSize = 100
	outboxRetryBase = time.Minute
	outboxRetryMax  = time.Hour
	jobTimeout      = 30 * time.Second
)

// JobRunner coordinates the background jobs: outbox dispatch, invitation
// expiry, and login code cleanup.
type JobRunner struct {
	outboxRepo     domain.OutboxRepository
	membershipRepo domain.WorkspaceMembershipRepository
	loginCodeRepo  domain.LoginCodeRepository
	publisher      domain.EventPublisher
	logger         *slog.Logger
}

// NewJobRunner creates a job runner with all dependencies.
func NewJobRunner(
	outboxRepo domain.OutboxRepository,
	membershipRepo domain.WorkspaceMembershipRepository,
	loginCodeRepo domain.LoginCodeRepository,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *JobRunner {
	return &JobRunner{
		outboxRepo:     outboxRepo,
		membershipRepo: membershipRepo,
		loginCodeRepo:  loginCodeRepo,
		publisher:      publisher,
		logger:         logger,
	}
}

// runWithRecovery wraps job execution with panic recovery so a failing job
// never takes down the scheduler.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			jr.logger.Error("job panicked", "job", jobName, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	jr.logger.Info("starting job", "job", jobName)
	jobFunc(ctx)
	jr.logger.Info("job completed", "job", jobName)
}

// DispatchOutbox delivers due outbox entries to the event publisher. Failed
// deliveries are rescheduled with exponential backoff until the entry hits
// the dead-letter threshold.
func (jr *JobRunner) DispatchOutbox() {
	jr.runWithRecovery("DispatchOutbox", func(ctx context.Context) {
		now := time.Now()
		entries, err := jr.outboxRepo.ListDue(ctx, now, outboxBatchSize)
		if err != nil {
			jr.logger.Error("failed to list due outbox entries", "error", err)
			return
		}
		for _, entry := range entries {
			payload, err := domain.DecodeEventPayload(entry.EventType, entry.Payload)
			if err != nil {
				// Undecodable rows will never succeed; push them toward
				// the dead-letter threshold.
				jr.markFailed(ctx, entry, err)
				continue
			}
			if err := jr.publisher.Publish(ctx, entry.EventType, payload); err != nil {
				jr.markFailed(ctx, entry, err)
				continue
			}
			if err := jr.outboxRepo.MarkSent(ctx, entry.ID, time.Now()); err != nil {
				jr.logger.Error("failed to mark outbox entry sent", "entry_id", entry.ID, "error", err)
			}
		}
	})
}

func (jr *JobRunner) markFailed(ctx context.Context, entry *domain.OutboxEntry, cause error) {
	attempts := entry.AttemptCount + 1
	next := time.Now().Add(retryDelay(attempts))
	if err := jr.outboxRepo.MarkFailed(ctx, entry.ID, attempts, cause.Error(), next); err != nil {
		jr.logger.Error("failed to mark outbox entry failed", "entry_id", entry.ID, "error", err)
		return
	}
	jr.logger.Warn("outbox delivery failed",
		"entry_id", entry.ID, "event_type", string(entry.EventType),
		"attempts", attempts, "error", cause)
}

// retryDelay doubles per attempt, capped at outboxRetryMax.
func retryDelay(attempts int) time.Duration {
	delay := outboxRetryBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= outboxRetryMax {
			return outboxRetryMax
		}
	}
	return delay
}

// ExpireInvites marks INVITED memberships whose invite window has passed as
// EXPIRED. The invite rows themselves are kept for the audit trail.
func (jr *JobRunner) ExpireInvites() {
	jr.runWithRecovery("ExpireInvites", func(ctx context.Context) {
		n, err := jr.membershipRepo.ExpireInvitedBefore(ctx, time.Now())
		if err != nil {
			jr.logger.Error("failed to expire invitations", "error", err)
			return
		}
		if n > 0 {
			jr.logger.Info("expired stale invitations", "count", n)
		}
	})
}

// PurgeLoginCodes deletes expired one-time login codes.
func (jr *JobRunner) PurgeLoginCodes() {
	jr.runWithRecovery("PurgeLoginCodes", func(ctx context.Context) {
		n, err := jr.loginCodeRepo.DeleteExpiredBefore(ctx, time.Now())
		if err != nil {
			jr.logger.Error("failed to purge login codes", "error", err)
			return
		}
		if n > 0 {
			jr.logger.Info("purged expired login codes", "count", n)
		}
	})
}
