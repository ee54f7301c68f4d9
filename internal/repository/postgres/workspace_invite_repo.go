package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"launchline/internal/domain"
)

var invitePaginationFields = domain.PaginationFields{
	CreatedAtField: "created_at",
	IDField:        "id",
	UpdatedAtField: "updated_at",
}

const inviteColumns = `id, token, workspace_membership_id, created_by_user_id, expires_at, consumed_at, disabled_at, created_at, updated_at`

type workspaceInviteRepository struct {
	DB *sql.DB
}

func NewWorkspaceInviteRepository(db *sql.DB) domain.WorkspaceInviteRepository {
	return &workspaceInviteRepository{DB: db}
}

func scanInvite(row interface{ Scan(...any) error }) (*domain.WorkspaceInvite, error) {
	inv := &domain.WorkspaceInvite{}
	err := row.Scan(&inv.ID, &inv.Token, &inv.WorkspaceMembershipID, &inv.CreatedByUserID,
		&inv.ExpiresAt, &inv.ConsumedAt, &inv.DisabledAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create inserts the INVITED membership, the invite row, and the invited
// event in a single transaction, so a half-created invitation can never be
// observed.
func (r *workspaceInviteRepository) Create(ctx context.Context, membership *domain.WorkspaceMembership, invite *domain.WorkspaceInvite, evt domain.DomainEvent) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create invitation: %w", err)
	}
	defer tx.Rollback()

	memQuery := `
		INSERT INTO workspace_memberships (workspace_id, user_id, role, status, email, full_name, invited_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, memQuery,
		membership.WorkspaceID,
		membership.UserID,
		string(membership.Role),
		string(membership.Status),
		membership.Email,
		membership.FullName,
		membership.InvitedAt,
		membership.CreatedAt,
		membership.UpdatedAt,
	).Scan(&membership.ID); err != nil {
		return fmt.Errorf("insert invited membership: %w", err)
	}

	invite.WorkspaceMembershipID = membership.ID
	invQuery := `
		INSERT INTO workspace_invites (token, workspace_membership_id, created_by_user_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, invQuery,
		invite.Token,
		invite.WorkspaceMembershipID,
		invite.CreatedByUserID,
		invite.ExpiresAt,
		invite.CreatedAt,
		invite.UpdatedAt,
	).Scan(&invite.ID); err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}

	if payload, ok := evt.Payload.(domain.WorkspaceMemberInvitedPayload); ok {
		payload.MembershipID = membership.ID
		evt.Payload = payload
	}
	if err := enqueueOutbox(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *workspaceInviteRepository) GetByToken(ctx context.Context, token string) (*domain.InvitationLookup, error) {
	query := `
		SELECT
			i.id, i.token, i.workspace_membership_id, i.created_by_user_id,
			i.expires_at, i.consumed_at, i.disabled_at, i.created_at, i.updated_at,
			m.id, m.workspace_id, m.user_id, m.role, m.status, m.email, m.full_name,
			m.invited_at, m.joined_at, m.deactivated_at, m.created_at, m.updated_at,
			w.id, w.name, w.deactivated_at, w.created_at, w.updated_at
		FROM workspace_invites i
		JOIN workspace_memberships m ON m.id = i.workspace_membership_id
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE i.token = $1
	`
	lookup := &domain.InvitationLookup{}
	var role, status string
	err := r.DB.QueryRowContext(ctx, query, token).Scan(
		&lookup.Invite.ID, &lookup.Invite.Token, &lookup.Invite.WorkspaceMembershipID, &lookup.Invite.CreatedByUserID,
		&lookup.Invite.ExpiresAt, &lookup.Invite.ConsumedAt, &lookup.Invite.DisabledAt, &lookup.Invite.CreatedAt, &lookup.Invite.UpdatedAt,
		&lookup.Membership.ID, &lookup.Membership.WorkspaceID, &lookup.Membership.UserID, &role, &status,
		&lookup.Membership.Email, &lookup.Membership.FullName,
		&lookup.Membership.InvitedAt, &lookup.Membership.JoinedAt, &lookup.Membership.DeactivatedAt,
		&lookup.Membership.CreatedAt, &lookup.Membership.UpdatedAt,
		&lookup.Workspace.ID, &lookup.Workspace.Name, &lookup.Workspace.DeactivatedAt,
		&lookup.Workspace.CreatedAt, &lookup.Workspace.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	lookup.Membership.Role = domain.MembershipRole(role)
	lookup.Membership.Status = domain.MembershipStatus(status)
	return lookup, nil
}

// Redeem consumes the invite and promotes its membership to ACTIVE in one
// transaction. The FOR UPDATE lock serializes concurrent redemptions of the
// same token: the second caller blocks until the first commits, then observes
// consumed_at set and fails with ErrInviteConsumed. Redemption is therefore
// at-most-once per token.
func (r *workspaceInviteRepository) Redeem(ctx context.Context, token, email, fullName string, now time.Time, evt domain.DomainEvent) (*domain.WorkspaceMembership, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin redeem invitation: %w", err)
	}
	defer tx.Rollback()

	lockQuery := `
		SELECT ` + inviteColumns + `
		FROM workspace_invites
		WHERE token = $1
		FOR UPDATE
	`
	invite, err := scanInvite(tx.QueryRowContext(ctx, lockQuery, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("lock invite: %w", err)
	}

	// Re-check terminal states under the lock; a racing caller may have
	// consumed or disabled the invite after the pre-validation read.
	if invite.ConsumedAt != nil {
		return nil, domain.ErrInviteConsumed
	}
	if invite.DisabledAt != nil {
		return nil, domain.ErrInviteDisabled
	}
	if !invite.ExpiresAt.After(now) {
		return nil, domain.ErrInviteExpired
	}

	consumeQuery := `
		UPDATE workspace_invites
		SET consumed_at = $1, updated_at = $1
		WHERE id = $2
	`
	if _, err := tx.ExecContext(ctx, consumeQuery, now, invite.ID); err != nil {
		return nil, fmt.Errorf("consume invite: %w", err)
	}

	// One active account per email per workspace: reject if another
	// membership already holds this email.
	var conflicting int
	conflictQuery := `
		SELECT COUNT(*)
		FROM workspace_memberships m
		JOIN workspace_memberships target ON target.workspace_id = m.workspace_id
		WHERE target.id = $1
		  AND m.id <> target.id
		  AND m.email = $2
		  AND m.status NOT IN ('INVITED', 'REVOKED', 'EXPIRED', 'INACTIVE')
	`
	if err := tx.QueryRowContext(ctx, conflictQuery, invite.WorkspaceMembershipID, email).Scan(&conflicting); err != nil {
		return nil, fmt.Errorf("check email conflict: %w", err)
	}
	if conflicting > 0 {
		return nil, domain.ErrEmailInUse
	}

	promoteQuery := `
		UPDATE workspace_memberships
		SET status = 'ACTIVE', email = $1, full_name = $2, joined_at = $3, updated_at = $3
		WHERE id = $4 AND status = 'INVITED'
		RETURNING ` + membershipColumns + `
	`
	membership, err := scanMembership(tx.QueryRowContext(ctx, promoteQuery, email, fullName, now, invite.WorkspaceMembershipID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("promote membership: %w", err)
	}

	if payload, ok := evt.Payload.(domain.WorkspaceMemberJoinedPayload); ok {
		payload.Email = email
		evt.Payload = payload
	}
	if err := enqueueOutbox(ctx, tx, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem invitation: %w", err)
	}
	return membership, nil
}

func (r *workspaceInviteRepository) Disable(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE workspace_invites
		SET disabled_at = $1, updated_at = $1
		WHERE id = $2 AND disabled_at IS NULL AND consumed_at IS NULL
	`
	res, err := r.DB.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInviteNotFound
	}
	return nil
}

func (r *workspaceInviteRepository) ListByWorkspaceID(ctx context.Context, workspaceID string, result domain.CursorResult) ([]*domain.WorkspaceInvite, error) {
	conds := []string{"workspace_membership_id IN (SELECT id FROM workspace_memberships WHERE workspace_id = $1)"}
	args := []any{workspaceID}
	conds, args = appendCursorFilters(result, invitePaginationFields, conds, args)
	args = append(args, result.QueryLimit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM workspace_invites
		WHERE %s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d
	`, inviteColumns, strings.Join(conds, " AND "), len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*domain.WorkspaceInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []*domain.WorkspaceInvite{}
	}
	return invites, nil
}
