package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"launchline/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutboxRepo struct {
	due    []*domain.OutboxEntry
	sent   []string
	failed map[string]int
}

func newFakeOutboxRepo(due ...*domain.OutboxEntry) *fakeOutboxRepo {
	return &fakeOutboxRepo{due: due, failed: make(map[string]int)}
}

func (f *fakeOutboxRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEntry, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeOutboxRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id string, attemptCount int, lastError string, nextAttemptAt time.Time) error {
	f.failed[id] = attemptCount
	return nil
}

type fakePublisher struct {
	published []domain.EventType
	failTypes map[domain.EventType]error
}

func (f *fakePublisher) Publish(ctx context.Context, eventType domain.EventType, payload any) error {
	if err, ok := f.failTypes[eventType]; ok {
		return err
	}
	f.published = append(f.published, eventType)
	return nil
}

type fakeExpirer struct {
	expired int64
	err     error
}

func (f *fakeExpirer) GetByID(ctx context.Context, id string) (*domain.WorkspaceMembership, error) {
	return nil, domain.ErrMembershipNotFound
}

func (f *fakeExpirer) ListByWorkspaceID(ctx context.Context, workspaceID string, result domain.CursorResult) ([]*domain.WorkspaceMembership, error) {
	return nil, nil
}

func (f *fakeExpirer) Revoke(ctx context.Context, id string, at time.Time) error { return nil }

func (f *fakeExpirer) ExpireInvitedBefore(ctx context.Context, now time.Time) (int64, error) {
	return f.expired, f.err
}

type fakeCodePurger struct {
	purged int64
}

func (f *fakeCodePurger) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	return nil
}

func (f *fakeCodePurger) Consume(ctx context.Context, email, codeHash string, maxAttempts int) (bool, error) {
	return false, nil
}

func (f *fakeCodePurger) RecordFailedAttempt(ctx context.Context, email string, maxAttempts int) (int, error) {
	return 0, nil
}

func (f *fakeCodePurger) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	return f.purged, nil
}

func mustPayload(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func newRunner(outbox *fakeOutboxRepo, pub *fakePublisher) *JobRunner {
	return NewJobRunner(outbox, &fakeExpirer{}, &fakeCodePurger{}, pub,
		slog.New(slog.DiscardHandler))
}

func TestJobRunner_DispatchOutbox(t *testing.T) {
	t.Run("delivers due entries and marks them sent", func(t *testing.T) {
		outbox := newFakeOutboxRepo(
			&domain.OutboxEntry{
				ID:        "evt-1",
				EventType: domain.EventWorkspaceMemberInvited,
				Payload:   mustPayload(t, domain.WorkspaceMemberInvitedPayload{WorkspaceID: "ws-1"}),
			},
			&domain.OutboxEntry{
				ID:        "evt-2",
				EventType: domain.EventWorkspaceMemberJoined,
				Payload:   mustPayload(t, domain.WorkspaceMemberJoinedPayload{WorkspaceID: "ws-1"}),
			},
		)
		pub := &fakePublisher{}

		newRunner(outbox, pub).DispatchOutbox()

		assert.Equal(t, []string{"evt-1", "evt-2"}, outbox.sent)
		assert.Equal(t, []domain.EventType{
			domain.EventWorkspaceMemberInvited,
			domain.EventWorkspaceMemberJoined,
		}, pub.published)
		assert.Empty(t, outbox.failed)
	})

	t.Run("publish failure schedules a retry", func(t *testing.T) {
		outbox := newFakeOutboxRepo(&domain.OutboxEntry{
			ID:           "evt-1",
			EventType:    domain.EventWorkspaceMemberJoined,
			Payload:      mustPayload(t, domain.WorkspaceMemberJoinedPayload{WorkspaceID: "ws-1"}),
			AttemptCount: 2,
		})
		pub := &fakePublisher{failTypes: map[domain.EventType]error{
			domain.EventWorkspaceMemberJoined: errors.New("downstream unavailable"),
		}}

		newRunner(outbox, pub).DispatchOutbox()

		assert.Empty(t, outbox.sent)
		assert.Equal(t, 3, outbox.failed["evt-1"])
	})

	t.Run("undecodable payload is failed not published", func(t *testing.T) {
		outbox := newFakeOutboxRepo(&domain.OutboxEntry{
			ID:        "evt-1",
			EventType: domain.EventType("mystery.event"),
			Payload:   []byte(`{}`),
		})
		pub := &fakePublisher{}

		newRunner(outbox, pub).DispatchOutbox()

		assert.Empty(t, pub.published)
		assert.Equal(t, 1, outbox.failed["evt-1"])
	})

	t.Run("one failure does not block the rest of the batch", func(t *testing.T) {
		outbox := newFakeOutboxRepo(
			&domain.OutboxEntry{
				ID:        "evt-bad",
				EventType: domain.EventWorkspaceMemberInvited,
				Payload:   mustPayload(t, domain.WorkspaceMemberInvitedPayload{}),
			},
			&domain.OutboxEntry{
				ID:        "evt-good",
				EventType: domain.EventWorkspaceDeactivated,
				Payload:   mustPayload(t, domain.WorkspaceDeactivatedPayload{WorkspaceID: "ws-1"}),
			},
		)
		pub := &fakePublisher{failTypes: map[domain.EventType]error{
			domain.EventWorkspaceMemberInvited: errors.New("boom"),
		}}

		newRunner(outbox, pub).DispatchOutbox()

		assert.Equal(t, []string{"evt-good"}, outbox.sent)
		assert.Equal(t, 1, outbox.failed["evt-bad"])
	})
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Minute, retryDelay(1))
	assert.Equal(t, 2*time.Minute, retryDelay(2))
	assert.Equal(t, 4*time.Minute, retryDelay(3))
	assert.Equal(t, time.Hour, retryDelay(10))
}

func TestJobRunner_ExpireInvites(t *testing.T) {
	expirer := &fakeExpirer{expired: 3}
	jr := NewJobRunner(newFakeOutboxRepo(), expirer, &fakeCodePurger{}, &fakePublisher{},
		slog.New(slog.DiscardHandler))
	jr.ExpireInvites()
}

func TestJobRunner_PurgeLoginCodes(t *testing.T) {
	jr := NewJobRunner(newFakeOutboxRepo(), &fakeExpirer{}, &fakeCodePurger{purged: 2}, &fakePublisher{},
		slog.New(slog.DiscardHandler))
	jr.PurgeLoginCodes()
}
