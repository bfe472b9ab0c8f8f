// Package memory is an in-process store.Store.
//
// Row locks are per-key semaphores held until the end of the transaction.
// Writes are staged on the transaction and applied in one step on commit, so a
// failed or timed-out unit leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

const defaultLockTimeout = 2 * time.Second

type voteKey struct {
	reviewID string
	voterID  string
	kind     models.VoteKind
}

type Store struct {
	locks       *keyLocks
	lockTimeout time.Duration

	mu             sync.RWMutex
	accounts       map[string]models.Account
	txns           map[string]models.Transaction
	accountTxns    map[string][]string
	series         map[string]models.Series
	episodes       map[string]models.Episode
	seriesEpisodes map[string][]string
	reviews        map[string]models.Review
	episodeReviews map[string][]string
	votes          map[voteKey]models.ReviewVote
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a row lock before
// failing with store.ErrConflict.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		locks:          newKeyLocks(),
		lockTimeout:    defaultLockTimeout,
		accounts:       make(map[string]models.Account),
		txns:           make(map[string]models.Transaction),
		accountTxns:    make(map[string][]string),
		series:         make(map[string]models.Series),
		episodes:       make(map[string]models.Episode),
		seriesEpisodes: make(map[string][]string),
		reviews:        make(map[string]models.Review),
		episodeReviews: make(map[string][]string),
		votes:          make(map[voteKey]models.ReviewVote),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	tx := newTx(s)
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}
	// A unit whose caller gave up is rolled back even if fn finished.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range tx.accounts {
		s.accounts[id] = *a
	}
	for _, t := range tx.newTxns {
		s.txns[t.ID] = t
		s.accountTxns[t.AccountID] = append(s.accountTxns[t.AccountID], t.ID)
	}
	for id, r := range tx.resolved {
		t := s.txns[id]
		t.Status = r.status
		at := r.at
		t.ResolvedAt = &at
		s.txns[id] = t
	}
	for _, sr := range tx.newSeries {
		s.series[sr.ID] = sr
	}
	for id, e := range tx.episodes {
		if tx.newEpisodes[id] {
			s.seriesEpisodes[e.SeriesID] = append(s.seriesEpisodes[e.SeriesID], id)
		}
		s.episodes[id] = *e
	}
	for id, r := range tx.reviews {
		if tx.newReviews[id] {
			s.episodeReviews[r.EpisodeID] = append(s.episodeReviews[r.EpisodeID], id)
		}
		s.reviews[id] = *r
	}
	for _, v := range tx.votes {
		s.votes[voteKey{v.ReviewID, v.VoterID, v.Kind}] = v
	}
}

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

// ListTransactions returns newest first.
func (s *Store) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.accountTxns[accountID]
	total := len(ids)
	out := []models.Transaction{}
	if offset < 0 || offset >= total {
		return out, total, nil
	}
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.txns[ids[i]])
	}
	return out, total, nil
}

func (s *Store) SumCompleted(ctx context.Context, accountID string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var balance, reputation int64
	for _, id := range s.accountTxns[accountID] {
		t := s.txns[id]
		if t.Status != models.TxnCompleted {
			continue
		}
		balance += t.Amount
		reputation += t.ReputationDelta
	}
	return balance, reputation, nil
}

func (s *Store) GetSeries(ctx context.Context, id string) (*models.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.series[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sr.Episodes = s.episodesOf(id)
	return &sr, nil
}

func (s *Store) ListSeriesByAuthor(ctx context.Context, authorID string) ([]models.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Series{}
	for _, sr := range s.series {
		if sr.AuthorID != authorID {
			continue
		}
		sr.Episodes = s.episodesOf(sr.ID)
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// episodesOf expects s.mu to be held.
func (s *Store) episodesOf(seriesID string) []models.Episode {
	ids := s.seriesEpisodes[seriesID]
	out := make([]models.Episode, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.episodes[id])
	}
	return out
}

func (s *Store) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.episodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) GetReview(ctx context.Context, id string) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

// ListReviews returns newest first.
func (s *Store) ListReviews(ctx context.Context, episodeID string) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.episodeReviews[episodeID]
	out := make([]models.Review, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.reviews[ids[i]])
	}
	return out, nil
}
