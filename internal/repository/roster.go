package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/models"
)

const membershipColumns = `list_id, user_id, role, joined_at, username, display_name, photo_url, profile_cached_at`

func scanMembership(row interface{ Scan(...interface{}) error }) (models.Membership, error) {
	var m models.Membership
	err := row.Scan(&m.ListID, &m.UserID, &m.Role, &m.JoinedAt,
		&m.Username, &m.DisplayName, &m.PhotoURL, &m.ProfileCachedAt)
	return m, err
}

func queryMembers(ctx context.Context, q queryer, listID uuid.UUID) ([]models.Membership, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE list_id = $1
		ORDER BY (role = 'owner') DESC, joined_at`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) Members(ctx context.Context, listID uuid.UUID) ([]models.Membership, error) {
	if _, err := s.GetList(ctx, listID); err != nil {
		return nil, err
	}
	return queryMembers(ctx, s.db, listID)
}

// ──────────────────── Roster transaction ────────────────────

type rosterOp struct {
	addMember     *models.Membership
	removeMember  *uuid.UUID
	setRoleUser   *uuid.UUID
	setRole       models.MemberRole
	setOwner      *uuid.UUID
	resolveInvite *uuid.UUID
	resolveTo     models.InviteState
}

type rosterTx struct {
	ctx    context.Context
	tx     *sql.Tx
	list   *models.List
	roster []models.Membership
	ops    []rosterOp
}

func (t *rosterTx) List() *models.List           { return t.list }
func (t *rosterTx) Members() []models.Membership { return t.roster }

func (t *rosterTx) AddMember(m models.Membership) {
	t.ops = append(t.ops, rosterOp{addMember: &m})
}

func (t *rosterTx) RemoveMember(userID uuid.UUID) {
	t.ops = append(t.ops, rosterOp{removeMember: &userID})
}

func (t *rosterTx) SetRole(userID uuid.UUID, role models.MemberRole) {
	t.ops = append(t.ops, rosterOp{setRoleUser: &userID, setRole: role})
}

func (t *rosterTx) SetOwner(userID uuid.UUID) {
	t.ops = append(t.ops, rosterOp{setOwner: &userID})
}

func (t *rosterTx) Invite(id uuid.UUID) (*models.Invitation, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+inviteColumns+` FROM invitations WHERE id = $1`, id)
	return scanInvite(row)
}

func (t *rosterTx) ResolveInvite(id uuid.UUID, to models.InviteState) {
	t.ops = append(t.ops, rosterOp{resolveInvite: &id, resolveTo: to})
}

// UpdateRoster reads the list and its roster inside a transaction, runs fn,
// applies the recorded mutations, and commits with a version compare on the
// list row. Any concurrent committed roster change makes the compare miss and
// the whole transaction rolls back with ErrStorageConflict.
func (s *Store) UpdateRoster(ctx context.Context, listID uuid.UUID, fn func(tx lists.RosterTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	list, err := scanList(tx.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, listID))
	if err != nil {
		return err
	}
	roster, err := queryMembers(ctx, tx, listID)
	if err != nil {
		return err
	}

	rt := &rosterTx{ctx: ctx, tx: tx, list: list, roster: roster}
	if err := fn(rt); err != nil {
		return err
	}

	newOwner := list.OwnerID
	for _, op := range rt.ops {
		switch {
		case op.addMember != nil:
			m := op.addMember
			_, err = tx.ExecContext(ctx, `
				INSERT INTO memberships (list_id, user_id, role, joined_at, username, display_name, photo_url, profile_cached_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				m.ListID, m.UserID, m.Role, m.JoinedAt,
				m.Username, m.DisplayName, m.PhotoURL, m.ProfileCachedAt)
			if isUniqueViolation(err, "memberships_pkey") {
				return lists.ErrAlreadyMember
			}
			if err != nil {
				return fmt.Errorf("insert membership: %w", err)
			}
		case op.removeMember != nil:
			if _, err = tx.ExecContext(ctx,
				`DELETE FROM memberships WHERE list_id = $1 AND user_id = $2`,
				listID, *op.removeMember); err != nil {
				return fmt.Errorf("delete membership: %w", err)
			}
		case op.setRoleUser != nil:
			if _, err = tx.ExecContext(ctx,
				`UPDATE memberships SET role = $3 WHERE list_id = $1 AND user_id = $2`,
				listID, *op.setRoleUser, op.setRole); err != nil {
				return fmt.Errorf("update role: %w", err)
			}
		case op.setOwner != nil:
			newOwner = *op.setOwner
		case op.resolveInvite != nil:
			res, err := tx.ExecContext(ctx, `
				UPDATE invitations SET state = $2, resolved_at = NOW()
				WHERE id = $1 AND state = 'pending'`,
				*op.resolveInvite, op.resolveTo)
			if err != nil {
				return fmt.Errorf("resolve invite: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return lists.ErrInviteAlreadyResolved
			}
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE lists SET version = version + 1, owner_id = $3, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		listID, list.Version, newOwner)
	if err != nil {
		return fmt.Errorf("commit roster version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lists.ErrStorageConflict
	}

	return tx.Commit()
}
