package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"launchline/internal/domain"
)

type workspaceRepository struct {
	DB *sql.DB
}

func NewWorkspaceRepository(db *sql.DB) domain.WorkspaceRepository {
	return &workspaceRepository{DB: db}
}

func (r *workspaceRepository) Create(ctx context.Context, ws *domain.Workspace, adminMembership *domain.WorkspaceMembership) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create workspace: %w", err)
	}
	defer tx.Rollback()

	wsQuery := `
		INSERT INTO workspaces (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, wsQuery, ws.Name, ws.CreatedAt, ws.UpdatedAt).Scan(&ws.ID); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}

	adminMembership.WorkspaceID = ws.ID
	memQuery := `
		INSERT INTO workspace_memberships (workspace_id, user_id, role, status, email, full_name, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, memQuery,
		adminMembership.WorkspaceID,
		adminMembership.UserID,
		string(adminMembership.Role),
		string(adminMembership.Status),
		adminMembership.Email,
		adminMembership.FullName,
		adminMembership.JoinedAt,
		adminMembership.CreatedAt,
		adminMembership.UpdatedAt,
	).Scan(&adminMembership.ID); err != nil {
		return fmt.Errorf("insert admin membership: %w", err)
	}

	return tx.Commit()
}

func (r *workspaceRepository) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	query := `
		SELECT id, name, deactivated_at, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`
	ws := &domain.Workspace{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&ws.ID, &ws.Name, &ws.DeactivatedAt, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, err
	}
	return ws, nil
}

func (r *workspaceRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Workspace, error) {
	query := `
		SELECT w.id, w.name, w.deactivated_at, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_memberships m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND m.status = 'ACTIVE' AND w.deactivated_at IS NULL
		ORDER BY w.created_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []*domain.Workspace
	for rows.Next() {
		ws := &domain.Workspace{}
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.DeactivatedAt, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if workspaces == nil {
		workspaces = []*domain.Workspace{}
	}
	return workspaces, nil
}

func (r *workspaceRepository) Deactivate(ctx context.Context, id string, at time.Time, evt domain.DomainEvent) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE workspaces
		SET deactivated_at = $1, updated_at = $1
		WHERE id = $2 AND deactivated_at IS NULL
	`
	res, err := tx.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrWorkspaceNotFound
	}
	if err := enqueueOutbox(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}
