package lists_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattgrd/watchcrew/internal/models"
)

var dune = models.Movie{
	TMDBID:    438631,
	MediaType: models.MediaTypeMovie,
	Title:     "Dune",
	Year:      2021,
}

func TestAddMovieFanout(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	mine, err := svc.CreateList(ctx, alice, "Mine", false)
	require.NoError(t, err)
	shared, err := svc.CreateList(ctx, bob, "Shared", false)
	require.NoError(t, err)
	addCollaborator(t, svc, bob, shared.ID, alice)
	foreign, err := svc.CreateList(ctx, carol, "Not Mine", false)
	require.NoError(t, err)

	res, err := svc.AddMovieToLists(ctx, alice, dune, []models.ListSelection{
		{ListID: mine.ID, Note: "rewatch in IMAX"},
		{ListID: shared.ID},
		{ListID: foreign.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, foreign.ID, res.Errors[0].ListID)
	assert.Equal(t, "NOT_A_MEMBER", res.Errors[0].Code)

	// One failing list never blocks the others.
	items, err := svc.Items(ctx, alice, mine.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, dune.TMDBID, items[0].TMDBID)
	assert.Equal(t, alice, items[0].AddedBy)
	assert.Equal(t, "rewatch in IMAX", items[0].Notes[alice])

	items, err = svc.Items(ctx, alice, shared.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].Notes)

	items, err = svc.Items(ctx, carol, foreign.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAddMovieIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Mine", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)

	sel := []models.ListSelection{{ListID: list.ID}}
	_, err = svc.AddMovieToLists(ctx, alice, dune, sel)
	require.NoError(t, err)

	// A second member re-adding the same movie succeeds without duplicating
	// the record or stealing provenance.
	res, err := svc.AddMovieToLists(ctx, bob, dune, sel)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)

	items, err := svc.Items(ctx, alice, list.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, alice, items[0].AddedBy)
}

func TestAddMovieRequiresTMDBID(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.AddMovieToLists(context.Background(), alice, models.Movie{Title: "No ID"}, nil)
	require.Error(t, err)
}

func TestAddMovieToManyLists(t *testing.T) {
	// More selections than worker goroutines; every outcome is still reported
	// in order.
	svc, _ := newService(t)
	ctx := context.Background()

	var sels []models.ListSelection
	for i := 0; i < 10; i++ {
		list, err := svc.CreateList(ctx, alice, uuid.NewString(), false)
		require.NoError(t, err)
		sels = append(sels, models.ListSelection{ListID: list.ID})
	}

	res, err := svc.AddMovieToLists(ctx, alice, dune, sels)
	require.NoError(t, err)
	assert.Equal(t, 10, res.SuccessCount)
	assert.Zero(t, res.ErrorCount)
}
