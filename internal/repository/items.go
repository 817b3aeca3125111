package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/models"
)

// UpsertItem is the idempotent add keyed by (list_id, tmdb_id): a re-add
// refreshes catalog display fields and keeps the original provenance.
func (s *Store) UpsertItem(ctx context.Context, item *models.ListItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO list_items (list_id, tmdb_id, media_type, title, year, poster_url, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (list_id, tmdb_id) DO UPDATE SET
			media_type = EXCLUDED.media_type,
			title      = EXCLUDED.title,
			year       = EXCLUDED.year,
			poster_url = EXCLUDED.poster_url`,
		item.ListID, item.TMDBID, item.MediaType, item.Title, item.Year,
		item.PosterURL, item.AddedBy, item.AddedAt)
	if isForeignKeyViolation(err) {
		return lists.ErrListNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert list item: %w", err)
	}
	return nil
}

func (s *Store) SetItemNote(ctx context.Context, listID uuid.UUID, tmdbID int64, userID uuid.UUID, note string) error {
	if note == "" {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM item_notes WHERE list_id = $1 AND tmdb_id = $2 AND user_id = $3`,
			listID, tmdbID, userID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_notes (list_id, tmdb_id, user_id, note, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (list_id, tmdb_id, user_id) DO UPDATE SET
			note = EXCLUDED.note, updated_at = NOW()`,
		listID, tmdbID, userID, note)
	if isForeignKeyViolation(err) {
		return lists.ErrListNotFound
	}
	if err != nil {
		return fmt.Errorf("set item note: %w", err)
	}
	return nil
}

func (s *Store) Items(ctx context.Context, listID uuid.UUID) ([]*models.ListItem, error) {
	if _, err := s.GetList(ctx, listID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT list_id, tmdb_id, media_type, title, year, poster_url, added_by, added_at
		FROM list_items
		WHERE list_id = $1
		ORDER BY added_at`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ListItem
	index := make(map[int64]*models.ListItem)
	for rows.Next() {
		item := &models.ListItem{Notes: make(map[uuid.UUID]string)}
		if err := rows.Scan(&item.ListID, &item.TMDBID, &item.MediaType, &item.Title,
			&item.Year, &item.PosterURL, &item.AddedBy, &item.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
		index[item.TMDBID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	noteRows, err := s.db.QueryContext(ctx, `
		SELECT tmdb_id, user_id, note FROM item_notes WHERE list_id = $1`, listID)
	if err != nil {
		return nil, err
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var tmdbID int64
		var userID uuid.UUID
		var note string
		if err := noteRows.Scan(&tmdbID, &userID, &note); err != nil {
			return nil, err
		}
		if item, ok := index[tmdbID]; ok {
			item.Notes[userID] = note
		}
	}
	return out, noteRows.Err()
}

func (s *Store) DeleteItem(ctx context.Context, listID uuid.UUID, tmdbID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM list_items WHERE list_id = $1 AND tmdb_id = $2`, listID, tmdbID)
	return err
}
