package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the invitation lifecycle. Expired, disabled, and
// consumed are each independently terminal for redemption; the invite row
// itself is never deleted, it remains as an audit trail.
var (
	ErrInviteNotFound = errors.New("invitation not found")
	ErrInviteExpired  = errors.New("invitation has expired")
	ErrInviteDisabled = errors.New("invitation has been disabled")
	ErrInviteConsumed = errors.New("invitation has already been used")
)

// WorkspaceInvite is a single-use, time-bound invitation token tied 1:1 to an
// INVITED workspace membership. The token is a bearer credential: possession
// authorizes redemption.
// swagger:model WorkspaceInvite
type WorkspaceInvite struct {
	ID                    string     `json:"id"`
	Token                 string     `json:"-"`
	WorkspaceMembershipID string     `json:"workspace_membership_id"`
	CreatedByUserID       string     `json:"created_by_user_id"`
	ExpiresAt             time.Time  `json:"expires_at"`
	ConsumedAt            *time.Time `json:"consumed_at,omitempty"`
	DisabledAt            *time.Time `json:"disabled_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// InvitationLookup is an invite joined with its membership and workspace,
// used for validation before presenting or redeeming.
type InvitationLookup struct {
	Invite     WorkspaceInvite
	Membership WorkspaceMembership
	Workspace  Workspace
}

// InvitationProjection is the redemption-ready view returned to callers.
// swagger:model InvitationProjection
type InvitationProjection struct {
	Token         string         `json:"token"`
	WorkspaceID   string         `json:"workspace_id"`
	WorkspaceName string         `json:"workspace_name"`
	Role          MembershipRole `json:"role"`
	EmailHint     string         `json:"email_hint,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

// Validate checks the lookup in redemption order and returns the first
// failing condition. ExpiresAt exactly equal to now counts as expired.
func (l *InvitationLookup) Validate(now time.Time) error {
	if l.Workspace.DeactivatedAt != nil {
		return ErrWorkspaceDeactivated
	}
	if l.Membership.DeactivatedAt != nil {
		return ErrMembershipDeactivated
	}
	if !l.Invite.ExpiresAt.After(now) {
		return ErrInviteExpired
	}
	if l.Invite.DisabledAt != nil {
		return ErrInviteDisabled
	}
	if l.Invite.ConsumedAt != nil {
		return ErrInviteConsumed
	}
	return nil
}

// WorkspaceInviteRepository defines storage operations for invites. The
// transactional methods own their transaction: Create persists the INVITED
// membership, the invite, and the invited event atomically; Redeem locks the
// invite row, re-checks terminal states under the lock, promotes the
// membership, and enqueues the joined event, all in one transaction.
type WorkspaceInviteRepository interface {
	Create(ctx context.Context, membership *WorkspaceMembership, invite *WorkspaceInvite, evt DomainEvent) error
	GetByToken(ctx context.Context, token string) (*InvitationLookup, error)
	Redeem(ctx context.Context, token, email, fullName string, now time.Time, evt DomainEvent) (*WorkspaceMembership, error)
	Disable(ctx context.Context, id string, at time.Time) error
	// ListByWorkspaceID pages invites for a workspace with the same keyset
	// ordering as memberships.
	ListByWorkspaceID(ctx context.Context, workspaceID string, result CursorResult) ([]*WorkspaceInvite, error)
}
