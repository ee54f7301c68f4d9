package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"launchline/internal/domain"

	"github.com/stretchr/testify/require"
)

const testToken = "a1b2c3d4e5f60718293a4b5c6d7e8f90"

var (
	frozenNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	laterExp  = frozenNow.Add(48 * time.Hour)
)

func inviteRows(consumedAt, disabledAt *time.Time, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "token", "workspace_membership_id", "created_by_user_id",
		"expires_at", "consumed_at", "disabled_at", "created_at", "updated_at",
	}).AddRow("inv-1", testToken, "mem-1", "user-1", expiresAt, consumedAt, disabledAt, frozenNow.Add(-time.Hour), frozenNow.Add(-time.Hour))
}

func membershipRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "user_id", "role", "status", "email", "full_name",
		"invited_at", "joined_at", "deactivated_at", "created_at", "updated_at",
	}).AddRow("mem-1", "ws-1", "placeholder-1", "MEMBER", status, "bob@example.com", "Bob Lee",
		frozenNow.Add(-time.Hour), frozenNow, nil, frozenNow.Add(-time.Hour), frozenNow)
}

func joinedEvent() domain.DomainEvent {
	return domain.DomainEvent{
		ID:         "evt-1",
		Type:       domain.EventWorkspaceMemberJoined,
		OccurredAt: frozenNow,
		Payload: domain.WorkspaceMemberJoinedPayload{
			WorkspaceID:  "ws-1",
			MembershipID: "mem-1",
			UserID:       "placeholder-1",
			Role:         domain.RoleMember,
		},
	}
}

func TestWorkspaceInviteRepository_Redeem_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM workspace_invites\s+WHERE token = \$1\s+FOR UPDATE`).
		WithArgs(testToken).
		WillReturnRows(inviteRows(nil, nil, laterExp))
	mock.ExpectExec(`UPDATE workspace_invites\s+SET consumed_at`).
		WithArgs(frozenNow, "inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("mem-1", "bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`UPDATE workspace_memberships\s+SET status = 'ACTIVE'`).
		WithArgs("bob@example.com", "Bob Lee", frozenNow, "mem-1").
		WillReturnRows(membershipRows("ACTIVE"))
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs("evt-1", string(domain.EventWorkspaceMemberJoined), sqlmock.AnyArg(), frozenNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewWorkspaceInviteRepository(db)
	membership, err := repo.Redeem(context.Background(), testToken, "bob@example.com", "Bob Lee", frozenNow, joinedEvent())
	require.NoError(t, err)
	require.Equal(t, domain.MembershipActive, membership.Status)
	require.Equal(t, "mem-1", membership.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkspaceInviteRepository_Redeem_TerminalStates(t *testing.T) {
	consumed := frozenNow.Add(-time.Minute)
	disabled := frozenNow.Add(-time.Minute)

	tests := []struct {
		name  string
		rows  *sqlmock.Rows
		errIs error
	}{
		{
			name:  "already consumed under lock",
			rows:  inviteRows(&consumed, nil, laterExp),
			errIs: domain.ErrInviteConsumed,
		},
		{
			name:  "disabled under lock",
			rows:  inviteRows(nil, &disabled, laterExp),
			errIs: domain.ErrInviteDisabled,
		},
		{
			name:  "expired under lock",
			rows:  inviteRows(nil, nil, frozenNow.Add(-time.Second)),
			errIs: domain.ErrInviteExpired,
		},
		{
			name:  "expiry boundary is expired",
			rows:  inviteRows(nil, nil, frozenNow),
			errIs: domain.ErrInviteExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT (.+) FROM workspace_invites\s+WHERE token = \$1\s+FOR UPDATE`).
				WithArgs(testToken).
				WillReturnRows(tt.rows)
			mock.ExpectRollback()

			repo := NewWorkspaceInviteRepository(db)
			_, err = repo.Redeem(context.Background(), testToken, "bob@example.com", "Bob Lee", frozenNow, joinedEvent())
			require.ErrorIs(t, err, tt.errIs)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWorkspaceInviteRepository_Redeem_EmailConflictRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM workspace_invites\s+WHERE token = \$1\s+FOR UPDATE`).
		WithArgs(testToken).
		WillReturnRows(inviteRows(nil, nil, laterExp))
	mock.ExpectExec(`UPDATE workspace_invites\s+SET consumed_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("mem-1", "bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	repo := NewWorkspaceInviteRepository(db)
	_, err = repo.Redeem(context.Background(), testToken, "bob@example.com", "Bob Lee", frozenNow, joinedEvent())
	require.ErrorIs(t, err, domain.ErrEmailInUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkspaceInviteRepository_Redeem_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM workspace_invites\s+WHERE token = \$1\s+FOR UPDATE`).
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	repo := NewWorkspaceInviteRepository(db)
	_, err = repo.Redeem(context.Background(), "unknown", "bob@example.com", "Bob Lee", frozenNow, joinedEvent())
	require.ErrorIs(t, err, domain.ErrInviteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkspaceInviteRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	membership := &domain.WorkspaceMembership{
		WorkspaceID: "ws-1",
		UserID:      "placeholder-1",
		Role:        domain.RoleMember,
		Status:      domain.MembershipInvited,
		Email:       "bob@example.com",
		InvitedAt:   &frozenNow,
		CreatedAt:   frozenNow,
		UpdatedAt:   frozenNow,
	}
	invite := &domain.WorkspaceInvite{
		Token:           testToken,
		CreatedByUserID: "user-1",
		ExpiresAt:       laterExp,
		CreatedAt:       frozenNow,
		UpdatedAt:       frozenNow,
	}
	evt := domain.DomainEvent{
		ID:         "evt-1",
		Type:       domain.EventWorkspaceMemberInvited,
		OccurredAt: frozenNow,
		Payload: domain.WorkspaceMemberInvitedPayload{
			WorkspaceID: "ws-1",
			InvitedBy:   "user-1",
			Email:       "bob@example.com",
			Role:        domain.RoleMember,
			ExpiresAt:   laterExp,
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO workspace_memberships`).
		WithArgs("ws-1", "placeholder-1", "MEMBER", "INVITED", "bob@example.com", "", frozenNow, frozenNow, frozenNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("mem-1"))
	mock.ExpectQuery(`INSERT INTO workspace_invites`).
		WithArgs(testToken, "mem-1", "user-1", laterExp, frozenNow, frozenNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("inv-1"))
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs("evt-1", string(domain.EventWorkspaceMemberInvited), sqlmock.AnyArg(), frozenNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewWorkspaceInviteRepository(db)
	err = repo.Create(context.Background(), membership, invite, evt)
	require.NoError(t, err)
	require.Equal(t, "mem-1", membership.ID)
	require.Equal(t, "mem-1", invite.WorkspaceMembershipID)
	require.Equal(t, "inv-1", invite.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkspaceInviteRepository_GetByToken_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM workspace_invites i`).
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	repo := NewWorkspaceInviteRepository(db)
	_, err = repo.GetByToken(context.Background(), "unknown")
	require.ErrorIs(t, err, domain.ErrInviteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkspaceInviteRepository_Disable_AlreadyTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE workspace_invites\s+SET disabled_at`).
		WithArgs(frozenNow, "inv-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewWorkspaceInviteRepository(db)
	err = repo.Disable(context.Background(), "inv-1", frozenNow)
	require.ErrorIs(t, err, domain.ErrInviteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
