package lists

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/mattgrd/watchcrew/internal/models"
)

const fanoutConcurrency = 4

// AddMovieToLists applies one add-movie action across several of the caller's
// list memberships. Each selection is independent: one failing list never
// rolls back or blocks the others. This is a best-effort batch, not a
// transaction — partial success is surfaced in the result, never hidden.
func (s *Service) AddMovieToLists(ctx context.Context, userID uuid.UUID, movie models.Movie, selections []models.ListSelection) (*models.BatchResult, error) {
	if movie.TMDBID == 0 {
		return nil, errors.New("movie tmdb id is required")
	}

	outcomes := make([]error, len(selections))
	p := pool.New().WithMaxGoroutines(fanoutConcurrency)
	for i, sel := range selections {
		p.Go(func() {
			outcomes[i] = s.addToList(ctx, userID, movie, sel)
		})
	}
	p.Wait()

	res := &models.BatchResult{}
	for i, err := range outcomes {
		if err == nil {
			res.SuccessCount++
			continue
		}
		res.ErrorCount++
		code := ErrorCode(err)
		if code == "" {
			log.Printf("[lists] fan-out add to %s failed: %v", selections[i].ListID, err)
			code = "INTERNAL"
		}
		res.Errors = append(res.Errors, models.ListError{ListID: selections[i].ListID, Code: code})
	}
	return res, nil
}

// addToList handles one selection: membership check, idempotent item upsert
// keyed by (listID, tmdbID), then the caller's own note when present.
func (s *Service) addToList(ctx context.Context, userID uuid.UUID, movie models.Movie, sel models.ListSelection) error {
	if _, err := s.requireMember(ctx, sel.ListID, userID); err != nil {
		return err
	}
	now := s.now().UTC()
	item := &models.ListItem{
		ListID:    sel.ListID,
		TMDBID:    movie.TMDBID,
		MediaType: movie.MediaType,
		Title:     movie.Title,
		Year:      movie.Year,
		PosterURL: movie.PosterURL,
		AddedBy:   userID,
		AddedAt:   now,
	}
	if err := s.store.UpsertItem(ctx, item); err != nil {
		return err
	}
	if sel.Note != "" {
		if err := s.store.SetItemNote(ctx, sel.ListID, movie.TMDBID, userID, sel.Note); err != nil {
			return err
		}
	}
	s.events.Publish(models.Event{Type: models.EventItemAdded, ListID: sel.ListID, UserID: userID, TMDBID: movie.TMDBID, At: now})
	return nil
}
