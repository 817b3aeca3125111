// Package repository is the postgres implementation of the engine's storage
// contract. Roster mutations commit through a version compare on the list
// row; see roster.go.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/models"
)

type Store struct {
	db *sql.DB
}

var _ lists.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == constraint
	}
	return false
}

// isForeignKeyViolation reports whether err is a postgres foreign-key
// violation (the referenced list is gone).
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

// ──────────────────── Lists ────────────────────

const listColumns = `id, owner_id, name, is_public, is_default, cover_image_url, version, created_at, updated_at`

func scanList(row interface{ Scan(...interface{}) error }) (*models.List, error) {
	l := &models.List{}
	err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.IsPublic, &l.IsDefault,
		&l.CoverImageURL, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, lists.ErrListNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) CreateList(ctx context.Context, list *models.List, owner *models.Membership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lists (id, owner_id, name, is_public, is_default, cover_image_url, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		list.ID, list.OwnerID, list.Name, list.IsPublic, list.IsDefault,
		list.CoverImageURL, list.Version, list.CreatedAt, list.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memberships (list_id, user_id, role, joined_at, username, display_name, photo_url, profile_cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		owner.ListID, owner.UserID, owner.Role, owner.JoinedAt,
		owner.Username, owner.DisplayName, owner.PhotoURL, owner.ProfileCachedAt)
	if err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetList(ctx context.Context, id uuid.UUID) (*models.List, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, id)
	return scanList(row)
}

func (s *Store) UpdateListFields(ctx context.Context, id uuid.UUID, upd models.ListUpdate) (*models.List, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE lists SET
			name            = COALESCE($2, name),
			is_public       = COALESCE($3, is_public),
			cover_image_url = COALESCE($4, cover_image_url),
			updated_at      = NOW()
		WHERE id = $1
		RETURNING `+listColumns,
		id, upd.Name, upd.IsPublic, upd.CoverImageURL)
	return scanList(row)
}

// DeleteList relies on ON DELETE CASCADE to take memberships, invitations,
// items and notes with the list row in one statement.
func (s *Store) DeleteList(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return lists.ErrListNotFound
	}
	return nil
}

func (s *Store) ListsByMember(ctx context.Context, userID uuid.UUID) ([]*models.List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("l", listColumns)+`
		FROM lists l
		JOIN memberships m ON m.list_id = l.id
		WHERE m.user_id = $1
		ORDER BY l.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) DefaultList(ctx context.Context, ownerID uuid.UUID) (*models.List, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+listColumns+` FROM lists WHERE owner_id = $1 AND is_default`, ownerID)
	return scanList(row)
}
