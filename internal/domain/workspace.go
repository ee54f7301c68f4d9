package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for workspace and membership operations. Controllers map
// these to HTTP status codes; each redemption failure is distinguishable so
// the frontend can render specific messaging.
var (
	ErrWorkspaceNotFound    = errors.New("workspace not found")
	ErrWorkspaceDeactivated = errors.New("workspace is deactivated")
	// ErrAmbiguousWorkspace is returned when a user resolves to zero or more
	// than one active workspace. Kept distinct from ErrWorkspaceNotFound so
	// the two failure causes are not conflated.
	ErrAmbiguousWorkspace    = errors.New("user does not resolve to exactly one workspace")
	ErrMembershipNotFound    = errors.New("workspace membership not found")
	ErrMembershipDeactivated = errors.New("workspace membership is deactivated")
	ErrEmailInUse            = errors.New("email already has an active membership in this workspace")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidInput          = errors.New("invalid input")
)

// MembershipRole is the role a member holds within a workspace.
type MembershipRole string

const (
	RoleAdmin  MembershipRole = "ADMIN"
	RoleMember MembershipRole = "MEMBER"
)

// MembershipStatus is the lifecycle state of a workspace membership.
// A membership transitions INVITED -> ACTIVE exactly once, via invite
// redemption.
type MembershipStatus string

const (
	MembershipInvited  MembershipStatus = "INVITED"
	MembershipActive   MembershipStatus = "ACTIVE"
	MembershipInactive MembershipStatus = "INACTIVE"
	MembershipExpired  MembershipStatus = "EXPIRED"
	MembershipRevoked  MembershipStatus = "REVOKED"
)

// Workspace represents a tenant workspace.
// swagger:model Workspace
type Workspace struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// WorkspaceMembership links a user to a workspace with a role and lifecycle
// status. At most one active membership may exist per (workspace, email).
// swagger:model WorkspaceMembership
type WorkspaceMembership struct {
	ID            string           `json:"id"`
	WorkspaceID   string           `json:"workspace_id"`
	UserID        string           `json:"user_id"`
	Role          MembershipRole   `json:"role"`
	Status        MembershipStatus `json:"status"`
	Email         string           `json:"email,omitempty"`
	FullName      string           `json:"full_name,omitempty"`
	InvitedAt     *time.Time       `json:"invited_at,omitempty"`
	JoinedAt      *time.Time       `json:"joined_at,omitempty"`
	DeactivatedAt *time.Time       `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// WorkspaceRepository defines storage operations for workspaces.
type WorkspaceRepository interface {
	// Create inserts the workspace and an ACTIVE admin membership for the
	// creator in a single transaction.
	Create(ctx context.Context, ws *Workspace, adminMembership *WorkspaceMembership) error
	GetByID(ctx context.Context, id string) (*Workspace, error)
	// ListByUserID returns the workspaces in which the user holds an active
	// membership.
	ListByUserID(ctx context.Context, userID string) ([]*Workspace, error)
	// Deactivate marks the workspace deactivated and enqueues the
	// deactivated event in the same transaction.
	Deactivate(ctx context.Context, id string, at time.Time, evt DomainEvent) error
}

// WorkspaceMembershipRepository defines storage operations for memberships.
type WorkspaceMembershipRepository interface {
	GetByID(ctx context.Context, id string) (*WorkspaceMembership, error)
	// ListByWorkspaceID returns up to result.QueryLimit memberships ordered
	// descending by created_at with ascending id tie-break, applying the
	// cursor and sync-token filters when present.
	ListByWorkspaceID(ctx context.Context, workspaceID string, result CursorResult) ([]*WorkspaceMembership, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	// ExpireInvitedBefore marks INVITED memberships whose invite expired
	// before the given instant as EXPIRED, returning the number updated.
	ExpireInvitedBefore(ctx context.Context, now time.Time) (int64, error)
}

// CreateInvitationInput carries the caller-supplied fields for a new invite.
type CreateInvitationInput struct {
	Email     string
	FullName  string
	Role      MembershipRole
	ExpiresAt *time.Time
}

// RedeemInvitationInput carries the redeemer-supplied fields.
type RedeemInvitationInput struct {
	Token    string
	Email    string
	FullName string
}

// WorkspaceService defines workspace management and the invitation lifecycle.
type WorkspaceService interface {
	CreateWorkspace(ctx context.Context, userID, name string) (*Workspace, error)
	GetUserWorkspace(ctx context.Context, userID string) (*Workspace, error)
	DeactivateWorkspace(ctx context.Context, userID, workspaceID string) error

	CreateWorkspaceInvitation(ctx context.Context, requestingUserID string, input CreateInvitationInput) (token string, err error)
	GetWorkspaceInvitation(ctx context.Context, token string) (*InvitationProjection, error)
	RedeemWorkspaceInvitation(ctx context.Context, input RedeemInvitationInput) (*WorkspaceMembership, error)
	DisableWorkspaceInvitation(ctx context.Context, requestingUserID, inviteID string) error

	ListWorkspaceMembers(ctx context.Context, requestingUserID, workspaceID string, params PaginationParams) (PaginatedResult[*WorkspaceMembership], string, error)
	ListWorkspaceInvitations(ctx context.Context, requestingUserID, workspaceID string, params PaginationParams) (PaginatedResult[*WorkspaceInvite], string, error)
	RevokeWorkspaceMembership(ctx context.Context, requestingUserID, membershipID string) error
}
