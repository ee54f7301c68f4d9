package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"launchline/internal/domain"
)

const (
	inviteTokenBytes    = 16
	defaultInviteExpiry = 48 * time.Hour
	inviteExpiryDays    = 2
)

type workspaceService struct {
	workspaceRepo  domain.WorkspaceRepository
	membershipRepo domain.WorkspaceMembershipRepository
	inviteRepo     domain.WorkspaceInviteRepository
	userRepo       domain.UserRepository
	emailService   domain.EmailService
	analytics      domain.AnalyticsSink
	logger         *slog.Logger
	inviteBaseURL  string
	contextTimeout time.Duration
}

// NewWorkspaceService creates a WorkspaceService with the given repositories
// and outbound ports. inviteBaseURL is the frontend URL invite links point at.
func NewWorkspaceService(
	workspaceRepo domain.WorkspaceRepository,
	membershipRepo domain.WorkspaceMembershipRepository,
	inviteRepo domain.WorkspaceInviteRepository,
	userRepo domain.UserRepository,
	emailService domain.EmailService,
	analytics domain.AnalyticsSink,
	logger *slog.Logger,
	inviteBaseURL string,
	timeout time.Duration,
) domain.WorkspaceService {
	return &workspaceService{
		workspaceRepo:  workspaceRepo,
		membershipRepo: membershipRepo,
		inviteRepo:     inviteRepo,
		userRepo:       userRepo,
		emailService:   emailService,
		analytics:      analytics,
		logger:         logger,
		inviteBaseURL:  inviteBaseURL,
		contextTimeout: timeout,
	}
}

func (s *workspaceService) CreateWorkspace(ctx context.Context, userID, name string) (*domain.Workspace, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := time.Now()
	ws := &domain.Workspace{Name: name, CreatedAt: now, UpdatedAt: now}
	admin := &domain.WorkspaceMembership{
		UserID:    user.ID,
		Role:      domain.RoleAdmin,
		Status:    domain.MembershipActive,
		Email:     user.Email,
		FullName:  user.FullName,
		JoinedAt:  &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.workspaceRepo.Create(ctx, ws, admin); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	s.analytics.Capture(ctx, userID, "workspace_created", map[string]any{
		"workspace_id": ws.ID,
	})
	return ws, nil
}

// resolveWorkspace returns the single workspace the user belongs to. Zero or
// multiple active workspaces is an invariant violation for the current
// product shape and is surfaced as its own error, not a generic not-found.
func (s *workspaceService) resolveWorkspace(ctx context.Context, userID string) (*domain.Workspace, error) {
	workspaces, err := s.workspaceRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user workspaces: %w", err)
	}
	if len(workspaces) != 1 {
		s.logger.Error("user does not resolve to exactly one workspace",
			"user_id", userID, "workspace_count", len(workspaces))
		return nil, domain.ErrAmbiguousWorkspace
	}
	return workspaces[0], nil
}

func (s *workspaceService) GetUserWorkspace(ctx context.Context, userID string) (*domain.Workspace, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	return s.resolveWorkspace(ctx, userID)
}

func (s *workspaceService) DeactivateWorkspace(ctx context.Context, userID, workspaceID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ws, err := s.resolveWorkspace(ctx, userID)
	if err != nil {
		return err
	}
	if ws.ID != workspaceID {
		return domain.ErrForbidden
	}
	now := time.Now()
	evt := domain.DomainEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventWorkspaceDeactivated,
		OccurredAt: now,
		Payload: domain.WorkspaceDeactivatedPayload{
			WorkspaceID:   workspaceID,
			DeactivatedBy: userID,
		},
	}
	if err := s.workspaceRepo.Deactivate(ctx, workspaceID, now, evt); err != nil {
		return fmt.Errorf("deactivate workspace: %w", err)
	}
	s.analytics.Capture(ctx, userID, "workspace_deactivated", map[string]any{
		"workspace_id": workspaceID,
	})
	return nil
}

func generateInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *workspaceService) CreateWorkspaceInvitation(ctx context.Context, requestingUserID string, input domain.CreateInvitationInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ws, err := s.resolveWorkspace(ctx, requestingUserID)
	if err != nil {
		return "", err
	}

	token, err := generateInviteToken()
	if err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(defaultInviteExpiry)
	if input.ExpiresAt != nil {
		expiresAt = *input.ExpiresAt
	}
	role := input.Role
	if role == "" {
		role = domain.RoleMember
	}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	// The invited user does not exist yet; the membership carries a
	// placeholder id until redemption binds a real account.
	membership := &domain.WorkspaceMembership{
		WorkspaceID: ws.ID,
		UserID:      uuid.NewString(),
		Role:        role,
		Status:      domain.MembershipInvited,
		Email:       email,
		FullName:    strings.TrimSpace(input.FullName),
		InvitedAt:   &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	invite := &domain.WorkspaceInvite{
		Token:           token,
		CreatedByUserID: requestingUserID,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	evt := domain.DomainEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventWorkspaceMemberInvited,
		OccurredAt: now,
		Payload: domain.WorkspaceMemberInvitedPayload{
			WorkspaceID: ws.ID,
			InvitedBy:   requestingUserID,
			Email:       email,
			Role:        role,
			ExpiresAt:   expiresAt,
		},
	}

	if err := s.inviteRepo.Create(ctx, membership, invite, evt); err != nil {
		return "", fmt.Errorf("create invitation: %w", err)
	}

	if email != "" {
		inviter, err := s.userRepo.GetByID(ctx, requestingUserID)
		inviterName := ""
		if err == nil {
			inviterName = inviter.FullName
			if inviterName == "" {
				inviterName = inviter.Email
			}
		}
		data := &domain.WorkspaceInvitationEmailData{
			Email:         email,
			InviterName:   inviterName,
			WorkspaceName: ws.Name,
			InviteURL:     s.inviteBaseURL + "/invite/" + token,
			ExpiresInDays: inviteExpiryDays,
		}
		if err := s.emailService.SendWorkspaceInvitation(ctx, data); err != nil {
			// The invitation exists and the raw token is returned to the
			// caller, so a failed email must not fail the operation.
			s.logger.Error("failed to send invitation email", "error", err, "workspace_id", ws.ID)
		}
	}

	s.analytics.Capture(ctx, requestingUserID, "workspace_member_invited", map[string]any{
		"workspace_id":  ws.ID,
		"membership_id": membership.ID,
		"role":          string(role),
	})
	return token, nil
}

func (s *workspaceService) GetWorkspaceInvitation(ctx context.Context, token string) (*domain.InvitationProjection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	lookup, err := s.inviteRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInviteNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if err := lookup.Validate(time.Now()); err != nil {
		return nil, err
	}
	return &domain.InvitationProjection{
		Token:         lookup.Invite.Token,
		WorkspaceID:   lookup.Workspace.ID,
		WorkspaceName: lookup.Workspace.Name,
		Role:          lookup.Membership.Role,
		EmailHint:     lookup.Membership.Email,
		ExpiresAt:     lookup.Invite.ExpiresAt,
	}, nil
}

func (s *workspaceService) RedeemWorkspaceInvitation(ctx context.Context, input domain.RedeemInvitationInput) (*domain.WorkspaceMembership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	// Pre-validate so callers get the precise failure before any lock is
	// taken; the repository re-checks terminal states under the row lock.
	lookup, err := s.inviteRepo.GetByToken(ctx, input.Token)
	if err != nil {
		if errors.Is(err, domain.ErrInviteNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	now := time.Now()
	if err := lookup.Validate(now); err != nil {
		return nil, err
	}

	// A pinned invite email wins over whatever the redeemer typed in.
	email := lookup.Membership.Email
	if email == "" {
		email = strings.TrimSpace(strings.ToLower(input.Email))
	}
	if email == "" {
		return nil, domain.ErrInvalidInput
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fullName = lookup.Membership.FullName
	}

	evt := domain.DomainEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventWorkspaceMemberJoined,
		OccurredAt: now,
		Payload: domain.WorkspaceMemberJoinedPayload{
			WorkspaceID:  lookup.Workspace.ID,
			MembershipID: lookup.Membership.ID,
			UserID:       lookup.Membership.UserID,
			Role:         lookup.Membership.Role,
		},
	}

	membership, err := s.inviteRepo.Redeem(ctx, input.Token, email, fullName, now, evt)
	if err != nil {
		return nil, err
	}

	s.analytics.Capture(ctx, membership.UserID, "workspace_member_joined", map[string]any{
		"workspace_id":  membership.WorkspaceID,
		"membership_id": membership.ID,
		"role":          string(membership.Role),
	})
	return membership, nil
}

func (s *workspaceService) DisableWorkspaceInvitation(ctx context.Context, requestingUserID, inviteID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.resolveWorkspace(ctx, requestingUserID); err != nil {
		return err
	}
	if err := s.inviteRepo.Disable(ctx, inviteID, time.Now()); err != nil {
		if errors.Is(err, domain.ErrInviteNotFound) {
			return domain.ErrInviteNotFound
		}
		return fmt.Errorf("disable invitation: %w", err)
	}
	return nil
}

var membershipListFields = domain.PaginationFields{
	CreatedAtField: "created_at",
	IDField:        "id",
	UpdatedAtField: "updated_at",
}

func (s *workspaceService) ListWorkspaceMembers(ctx context.Context, requestingUserID, workspaceID string, params domain.PaginationParams) (domain.PaginatedResult[*domain.WorkspaceMembership], string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var empty domain.PaginatedResult[*domain.WorkspaceMembership]
	ws, err := s.resolveWorkspace(ctx, requestingUserID)
	if err != nil {
		return empty, "", err
	}
	if ws.ID != workspaceID {
		return empty, "", domain.ErrForbidden
	}

	result := domain.CreateCursorFilters(params, membershipListFields, domain.MaxPageLimit, s.logger)
	members, err := s.membershipRepo.ListByWorkspaceID(ctx, workspaceID, result)
	if err != nil {
		return empty, "", fmt.Errorf("list members: %w", err)
	}
	page := domain.ProcessPaginationResult(members, result.EffectiveLimit,
		func(m *domain.WorkspaceMembership) string { return m.ID },
		func(m *domain.WorkspaceMembership) time.Time { return m.CreatedAt })
	return page, result.NewSyncToken, nil
}

func (s *workspaceService) ListWorkspaceInvitations(ctx context.Context, requestingUserID, workspaceID string, params domain.PaginationParams) (domain.PaginatedResult[*domain.WorkspaceInvite], string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var empty domain.PaginatedResult[*domain.WorkspaceInvite]
	ws, err := s.resolveWorkspace(ctx, requestingUserID)
	if err != nil {
		return empty, "", err
	}
	if ws.ID != workspaceID {
		return empty, "", domain.ErrForbidden
	}

	result := domain.CreateCursorFilters(params, membershipListFields, domain.MaxPageLimit, s.logger)
	invites, err := s.inviteRepo.ListByWorkspaceID(ctx, workspaceID, result)
	if err != nil {
		return empty, "", fmt.Errorf("list invitations: %w", err)
	}
	page := domain.ProcessPaginationResult(invites, result.EffectiveLimit,
		func(i *domain.WorkspaceInvite) string { return i.ID },
		func(i *domain.WorkspaceInvite) time.Time { return i.CreatedAt })
	return page, result.NewSyncToken, nil
}

func (s *workspaceService) RevokeWorkspaceMembership(ctx context.Context, requestingUserID, membershipID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ws, err := s.resolveWorkspace(ctx, requestingUserID)
	if err != nil {
		return err
	}
	membership, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.ErrMembershipNotFound
		}
		return fmt.Errorf("get membership: %w", err)
	}
	if membership.WorkspaceID != ws.ID {
		return domain.ErrMembershipNotFound
	}
	if err := s.membershipRepo.Revoke(ctx, membershipID, time.Now()); err != nil {
		return fmt.Errorf("revoke membership: %w", err)
	}
	s.analytics.Capture(ctx, requestingUserID, "workspace_member_revoked", map[string]any{
		"workspace_id":  ws.ID,
		"membership_id": membershipID,
	})
	return nil
}
