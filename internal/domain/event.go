package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the explicit discriminant of a domain event.
type EventType string

const (
	EventWorkspaceMemberInvited EventType = "workspace.member_invited"
	EventWorkspaceMemberJoined  EventType = "workspace.member_joined"
	EventWorkspaceDeactivated   EventType = "workspace.deactivated"
)

// DomainEvent is an immutable record of a state change. Payload holds one of
// the typed payload structs below, selected by Type.
type DomainEvent struct {
	ID         string
	Type       EventType
	OccurredAt time.Time
	Payload    any
}

// WorkspaceMemberInvitedPayload is the payload for EventWorkspaceMemberInvited.
type WorkspaceMemberInvitedPayload struct {
	WorkspaceID  string         `json:"workspace_id"`
	MembershipID string         `json:"membership_id"`
	InvitedBy    string         `json:"invited_by"`
	Email        string         `json:"email,omitempty"`
	Role         MembershipRole `json:"role"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// WorkspaceMemberJoinedPayload is the payload for EventWorkspaceMemberJoined.
type WorkspaceMemberJoinedPayload struct {
	WorkspaceID  string         `json:"workspace_id"`
	MembershipID string         `json:"membership_id"`
	UserID       string         `json:"user_id"`
	Email        string         `json:"email"`
	Role         MembershipRole `json:"role"`
}

// WorkspaceDeactivatedPayload is the payload for EventWorkspaceDeactivated.
type WorkspaceDeactivatedPayload struct {
	WorkspaceID   string `json:"workspace_id"`
	DeactivatedBy string `json:"deactivated_by"`
}

// EncodeEventPayload serializes an event payload to JSON for the outbox.
func EncodeEventPayload(evt DomainEvent) ([]byte, error) {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", evt.Type, err)
	}
	return data, nil
}

// DecodeEventPayload deserializes an outbox payload into the typed payload
// for the given event type. Unknown types are an error, not a silent pass.
func DecodeEventPayload(eventType EventType, data []byte) (any, error) {
	switch eventType {
	case EventWorkspaceMemberInvited:
		var p WorkspaceMemberInvitedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	case EventWorkspaceMemberJoined:
		var p WorkspaceMemberJoinedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	case EventWorkspaceDeactivated:
		var p WorkspaceDeactivatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

// OutboxStatus is the delivery state of an outbox row.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
	OutboxDead    OutboxStatus = "dead"
)

// OutboxEntry is a persisted domain event awaiting delivery. Writing the
// entry in the same transaction as the state change guarantees the event is
// not lost if the process crashes before publishing.
type OutboxEntry struct {
	ID            string
	EventType     EventType
	Payload       []byte
	Status        OutboxStatus
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OutboxRepository defines storage operations for the event outbox.
type OutboxRepository interface {
	// ListDue returns up to limit pending or retry-eligible entries whose
	// next attempt time has passed, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkFailed records the error and schedules the next attempt; entries
	// past the dead-letter threshold move to status dead.
	MarkFailed(ctx context.Context, id string, attemptCount int, lastError string, nextAttemptAt time.Time) error
}

// EventPublisher delivers a domain event to downstream consumers. The outbox
// dispatcher retries on error, so implementations should not retry
// internally.
type EventPublisher interface {
	Publish(ctx context.Context, eventType EventType, payload any) error
}
