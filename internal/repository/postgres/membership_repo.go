package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"launchline/internal/domain"
)

var membershipPaginationFields = domain.PaginationFields{
	CreatedAtField: "created_at",
	IDField:        "id",
	UpdatedAtField: "updated_at",
}

const membershipColumns = `id, workspace_id, user_id, role, status, email, full_name, invited_at, joined_at, deactivated_at, created_at, updated_at`

type membershipRepository struct {
	DB *sql.DB
}

func NewMembershipRepository(db *sql.DB) domain.WorkspaceMembershipRepository {
	return &membershipRepository{DB: db}
}

func scanMembership(row interface{ Scan(...any) error }) (*domain.WorkspaceMembership, error) {
	m := &domain.WorkspaceMembership{}
	var role, status string
	err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &status, &m.Email, &m.FullName,
		&m.InvitedAt, &m.JoinedAt, &m.DeactivatedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = domain.MembershipRole(role)
	m.Status = domain.MembershipStatus(status)
	return m, nil
}

func (r *membershipRepository) GetByID(ctx context.Context, id string) (*domain.WorkspaceMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM workspace_memberships WHERE id = $1`
	m, err := scanMembership(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *membershipRepository) ListByWorkspaceID(ctx context.Context, workspaceID string, result domain.CursorResult) ([]*domain.WorkspaceMembership, error) {
	conds := []string{"workspace_id = $1"}
	args := []any{workspaceID}
	conds, args = appendCursorFilters(result, membershipPaginationFields, conds, args)
	args = append(args, result.QueryLimit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM workspace_memberships
		WHERE %s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d
	`, membershipColumns, strings.Join(conds, " AND "), len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.WorkspaceMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if members == nil {
		members = []*domain.WorkspaceMembership{}
	}
	return members, nil
}

func (r *membershipRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE workspace_memberships
		SET status = 'REVOKED', deactivated_at = $1, updated_at = $1
		WHERE id = $2 AND status IN ('INVITED', 'ACTIVE')
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
		return domain.ErrMembershipNotFound
	}
	return nil
}

func (r *membershipRepository) ExpireInvitedBefore(ctx context.Context, now time.Time) (int64, error) {
	// Invite rows stay untouched for the audit trail; only the pending
	// membership flips to EXPIRED.
	query := `
		UPDATE workspace_memberships m
		SET status = 'EXPIRED', updated_at = $1
		FROM workspace_invites i
		WHERE i.workspace_membership_id = m.id
		  AND m.status = 'INVITED'
		  AND i.consumed_at IS NULL
		  AND i.expires_at < $1
	`
	res, err := r.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
