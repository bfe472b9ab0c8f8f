package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
)

func TestCatalogService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sr, err := f.catalog.CreateSeries(ctx, "author", "  Night Shift ", "desc", "")
	require.NoError(t, err)
	assert.Equal(t, "Night Shift", sr.Title)
	require.Len(t, f.pub.Of(events.SeriesCreated), 1)
	assert.Equal(t, sr.ID, f.pub.Of(events.SeriesCreated)[0].Keys.SeriesID)

	t.Run("default threshold", func(t *testing.T) {
		ep, err := f.catalog.CreateEpisode(ctx, "author", sr.ID, "Pilot", "https://cdn.test/1.mp4", 0)
		require.NoError(t, err)
		assert.Equal(t, f.economy.DefaultVotesRequired, ep.VotesRequired)
		assert.Equal(t, models.EpisodeFunding, ep.State)
	})

	t.Run("only the author adds episodes", func(t *testing.T) {
		_, err := f.catalog.CreateEpisode(ctx, "intruder", sr.ID, "Spam", "", 5)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := f.catalog.CreateEpisode(ctx, "author", sr.ID, "Neg", "", -1)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.catalog.CreateEpisode(ctx, "author", "missing", "x", "", 1)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.catalog.CreateSeries(ctx, "author", "   ", "", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	ws, err := f.catalog.Workspace(ctx, "author")
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Len(t, ws[0].Episodes, 1)

	_, err = f.catalog.Series(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
