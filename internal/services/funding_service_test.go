package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
)

func TestFundingService_CastVote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ep := f.episode(t, "author", 1000)
	f.fund(t, "fan", 1500)

	t.Run("accumulates below threshold", func(t *testing.T) {
		res, err := f.funding.CastVote(ctx, "fan", ep.ID, 400)
		require.NoError(t, err)
		assert.False(t, res.Released)
		assert.Equal(t, int64(400), res.Episode.CollectedFunds)
		assert.Equal(t, 40, res.Episode.Progress())
		assert.Equal(t, int64(1100), f.balance(t, "fan").Balance)
	})

	t.Run("overshoot releases once", func(t *testing.T) {
		res, err := f.funding.CastVote(ctx, "fan", ep.ID, 700)
		require.NoError(t, err)
		assert.True(t, res.Released)
		assert.Equal(t, int64(1100), res.Episode.CollectedFunds)
		assert.Equal(t, models.EpisodeReleased, res.Episode.State)
		assert.NotNil(t, res.Episode.ReleasedAt)
	})

	t.Run("released episode rejects votes", func(t *testing.T) {
		_, err := f.funding.CastVote(ctx, "fan", ep.ID, 10)
		assert.ErrorIs(t, err, ErrEpisodeAlreadyFunded)
		assert.ErrorIs(t, err, ErrEntityAlreadySettled)
		assert.Equal(t, int64(400), f.balance(t, "fan").Balance)
	})

	t.Run("invalid amount and unknown episode", func(t *testing.T) {
		_, err := f.funding.CastVote(ctx, "fan", ep.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.funding.CastVote(ctx, "fan", "missing", 10)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	var released int
	for _, e := range f.pub.Of(events.VideoStatusUpdated) {
		if p, ok := e.Data.(EpisodeStatusPayload); ok && p.Status == models.EpisodeReleased {
			released++
		}
	}
	assert.Equal(t, 1, released)
	f.assertReconciled(t)
}

func TestFundingService_InsufficientFundsLeavesEpisodeUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ep := f.episode(t, "author", 1000)
	f.fund(t, "poor", 50)

	_, err := f.funding.CastVote(ctx, "poor", ep.ID, 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	got, err := f.catalog.Episode(ctx, ep.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CollectedFunds)
	assert.Equal(t, int64(50), f.balance(t, "poor").Balance)
}

func TestFundingService_ConcurrentVotesReleaseExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ep := f.episode(t, "author", 100)

	const voters = 20
	for i := 0; i < voters; i++ {
		f.fund(t, fmt.Sprintf("voter-%d", i), 10)
	}

	var mu sync.Mutex
	var accepted, rejected, releases int
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := f.funding.CastVote(ctx, id, ep.ID, 10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
				if res.Released {
					releases++
				}
			case errors.Is(err, ErrEpisodeAlreadyFunded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("voter-%d", i))
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, 10, rejected)
	assert.Equal(t, 1, releases)

	got, err := f.catalog.Episode(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.CollectedFunds)
	assert.True(t, got.IsReleased())
	f.assertReconciled(t)
}

func TestFundingService_TwoVotesAgainstOneBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.episode(t, "author-a", 1000)
	b := f.episode(t, "author-b", 1000)
	f.fund(t, "fan", 500)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, ep := range []*models.Episode{a, b} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.funding.CastVote(ctx, "fan", id, 300)
		}(i, ep.ID)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, int64(200), f.balance(t, "fan").Balance)

	ga, _ := f.catalog.Episode(ctx, a.ID)
	gb, _ := f.catalog.Episode(ctx, b.ID)
	assert.Equal(t, int64(300), ga.CollectedFunds+gb.CollectedFunds)
	f.assertReconciled(t)
}
