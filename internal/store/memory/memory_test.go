package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

func TestStore_WithTxCommitsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()

	t.Run("commit applies staged writes", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			a, err := tx.LockAccount(ctx, "alice")
			if err != nil {
				return err
			}
			a.Balance = 500
			if err := tx.UpdateAccount(ctx, a); err != nil {
				return err
			}
			return tx.InsertTransaction(ctx, &models.Transaction{
				ID: "t1", AccountID: "alice", Amount: 500,
				Kind: models.KindDeposit, Status: models.TxnCompleted,
			})
		})
		require.NoError(t, err)

		a, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(500), a.Balance)
		assert.Equal(t, 1, a.Version)

		balance, _, err := s.SumCompleted(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance)
	})

	t.Run("error discards staged writes", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			a, err := tx.LockAccount(ctx, "alice")
			if err != nil {
				return err
			}
			a.Balance = 0
			if err := tx.UpdateAccount(ctx, a); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		a, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(500), a.Balance)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			a, err := tx.LockAccount(ctx, "alice")
			if err != nil {
				return err
			}
			a.Version--
			return tx.UpdateAccount(ctx, a)
		})
		assert.ErrorIs(t, err, store.ErrConflict)
	})
}

func TestStore_LockTimeout(t *testing.T) {
	ctx := context.Background()
	s := New(WithLockTimeout(20 * time.Millisecond))

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithTx(ctx, func(tx store.Tx) error {
			if _, err := tx.LockAccount(ctx, "bob"); err != nil {
				return err
			}
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.LockAccount(ctx, "bob")
		return err
	})
	close(done)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestStore_ConcurrentIncrementsAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				a, err := tx.LockAccount(ctx, "carol")
				if err != nil {
					return err
				}
				a.Balance++
				return tx.UpdateAccount(ctx, a)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := s.GetAccount(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(50), a.Balance)
	assert.Equal(t, 50, a.Version)
}

func TestStore_ReviewVoteUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	vote := models.ReviewVote{ReviewID: "r1", VoterID: "dave", Kind: models.VoteExecute}

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := vote
			results <- s.WithTx(ctx, func(tx store.Tx) error {
				return tx.InsertReviewVote(ctx, &v)
			})
		}()
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrDuplicate):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, dup)

	// A cancel vote from the same voter is a different key.
	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertReviewVote(ctx, &models.ReviewVote{ReviewID: "r1", VoterID: "dave", Kind: models.VoteCancel})
	})
	assert.NoError(t, err)
}

func TestStore_ResolveTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertTransaction(ctx, &models.Transaction{
			ID: "dep1", AccountID: "erin", Amount: 300,
			Kind: models.KindDeposit, Status: models.TxnPending,
		})
	}))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		txn, err := tx.LockTransaction(ctx, "dep1")
		if err != nil {
			return err
		}
		assert.Equal(t, models.TxnPending, txn.Status)
		return tx.ResolveTransaction(ctx, "dep1", models.TxnCompleted, at)
	}))

	txn, err := s.GetTransaction(ctx, "dep1")
	require.NoError(t, err)
	assert.Equal(t, models.TxnCompleted, txn.Status)
	require.NotNil(t, txn.ResolvedAt)
	assert.True(t, at.Equal(*txn.ResolvedAt))

	_, err = s.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_CatalogReads(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertSeries(ctx, &models.Series{ID: "s1", AuthorID: "frank", Title: "Pilot"}); err != nil {
			return err
		}
		for _, id := range []string{"e1", "e2"} {
			if err := tx.InsertEpisode(ctx, &models.Episode{
				ID: id, SeriesID: "s1", AuthorID: "frank",
				VotesRequired: 100, State: models.EpisodeFunding,
			}); err != nil {
				return err
			}
		}
		return tx.InsertReview(ctx, &models.Review{ID: "r1", EpisodeID: "e1", CriticID: "gina", State: models.ReviewOpen})
	}))

	sr, err := s.GetSeries(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sr.Episodes, 2)

	list, err := s.ListSeriesByAuthor(ctx, "frank")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	reviews, err := s.ListReviews(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "gina", reviews[0].CriticID)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertEpisode(ctx, &models.Episode{ID: "e1", SeriesID: "s1"})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestStore_ListTransactionsPaging(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, id := range []string{"a", "b", "c"} {
		id := id
		require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{ID: id, AccountID: "hank", Amount: 1, Status: models.TxnCompleted})
		}))
	}

	page, total, err := s.ListTransactions(ctx, "hank", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, _, err = s.ListTransactions(ctx, "hank", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)

	for _, offset := range []int{3, 40, -40} {
		page, total, err = s.ListTransactions(ctx, "hank", 2, offset)
		require.NoError(t, err, "offset %d", offset)
		assert.Equal(t, 3, total)
		assert.Empty(t, page)
	}
}
