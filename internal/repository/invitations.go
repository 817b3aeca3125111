package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/models"
)

const inviteColumns = `id, list_id, list_owner_id, inviter_id, kind, state, invitee_id, code, expires_at, created_at, resolved_at, inviter_name, invitee_name, list_name`

func scanInvite(row interface{ Scan(...interface{}) error }) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := row.Scan(&inv.ID, &inv.ListID, &inv.ListOwnerID, &inv.InviterID,
		&inv.Kind, &inv.State, &inv.InviteeID, &inv.Code, &inv.ExpiresAt,
		&inv.CreatedAt, &inv.ResolvedAt, &inv.InviterName, &inv.InviteeName, &inv.ListName)
	if err == sql.ErrNoRows {
		return nil, lists.ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) CreateInvite(ctx context.Context, inv *models.Invitation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invitations (id, list_id, list_owner_id, inviter_id, kind, state, invitee_id, code, expires_at, created_at, inviter_name, invitee_name, list_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		inv.ID, inv.ListID, inv.ListOwnerID, inv.InviterID, inv.Kind, inv.State,
		inv.InviteeID, inv.Code, inv.ExpiresAt, inv.CreatedAt,
		inv.InviterName, inv.InviteeName, inv.ListName)
	if isUniqueViolation(err, "invitations_pending_direct_idx") {
		return lists.ErrDuplicatePendingInvite
	}
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (s *Store) GetInvite(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invitations WHERE id = $1`, id)
	return scanInvite(row)
}

func (s *Store) GetInviteByCode(ctx context.Context, code string) (*models.Invitation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invitations WHERE code = $1`, code)
	return scanInvite(row)
}

func (s *Store) queryInvites(ctx context.Context, query string, args ...interface{}) ([]*models.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Invitation
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) PendingInvites(ctx context.Context, listID uuid.UUID) ([]*models.Invitation, error) {
	return s.queryInvites(ctx, `
		SELECT `+inviteColumns+` FROM invitations
		WHERE list_id = $1 AND state = 'pending'
		ORDER BY created_at`, listID)
}

func (s *Store) PendingInvitesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Invitation, error) {
	return s.queryInvites(ctx, `
		SELECT `+inviteColumns+` FROM invitations
		WHERE invitee_id = $1 AND kind = 'direct' AND state = 'pending'
		ORDER BY created_at`, userID)
}

func (s *Store) ResolveInvite(ctx context.Context, id uuid.UUID, to models.InviteState, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invitations SET state = $2, resolved_at = $3
		WHERE id = $1 AND state = 'pending'`, id, to, at)
	if err != nil {
		return fmt.Errorf("resolve invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM invitations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return lists.ErrInviteNotFound
		}
		return lists.ErrInviteAlreadyResolved
	}
	return nil
}

func (s *Store) PurgeDeadInvites(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM invitations
		WHERE (state <> 'pending' AND resolved_at < $1)
		   OR (kind = 'link' AND expires_at < $1)`, before)
	if err != nil {
		return 0, fmt.Errorf("purge invitations: %w", err)
	}
	return res.RowsAffected()
}
