package lists

import (
	"context"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/models"
)

// Items returns a list's movie records, notes included. Public lists are
// readable by anyone; private lists by members only.
func (s *Service) Items(ctx context.Context, callerID, listID uuid.UUID) ([]*models.ListItem, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if !list.IsPublic {
		if _, err := s.requireMember(ctx, listID, callerID); err != nil {
			return nil, err
		}
	}
	return s.store.Items(ctx, listID)
}

// RemoveItem deletes a movie record from a list, along with its notes.
// Member-only.
func (s *Service) RemoveItem(ctx context.Context, callerID, listID uuid.UUID, tmdbID int64) error {
	if _, err := s.requireMember(ctx, listID, callerID); err != nil {
		return err
	}
	return s.store.DeleteItem(ctx, listID, tmdbID)
}

// SetNote writes the caller's own note on a movie-in-list record. Notes are
// keyed by the writer's id; members only ever write their own entry and read
// everyone's.
func (s *Service) SetNote(ctx context.Context, callerID, listID uuid.UUID, tmdbID int64, note string) error {
	if _, err := s.requireMember(ctx, listID, callerID); err != nil {
		return err
	}
	return s.store.SetItemNote(ctx, listID, tmdbID, callerID, note)
}
