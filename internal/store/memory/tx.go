package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

type resolution struct {
	status models.TransactionStatus
	at     time.Time
}

type memTx struct {
	s    *Store
	held map[string]bool
	keys []string

	accounts    map[string]*models.Account
	newTxns     []models.Transaction
	lockedTxns  map[string]*models.Transaction
	resolved    map[string]resolution
	newSeries   []models.Series
	episodes    map[string]*models.Episode
	newEpisodes map[string]bool
	reviews     map[string]*models.Review
	newReviews  map[string]bool
	votes       []models.ReviewVote
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:           s,
		held:        make(map[string]bool),
		accounts:    make(map[string]*models.Account),
		lockedTxns:  make(map[string]*models.Transaction),
		resolved:    make(map[string]resolution),
		episodes:    make(map[string]*models.Episode),
		newEpisodes: make(map[string]bool),
		reviews:     make(map[string]*models.Review),
		newReviews:  make(map[string]bool),
	}
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, key, t.s.lockTimeout); err != nil {
		return err
	}
	t.held[key] = true
	t.keys = append(t.keys, key)
	return nil
}

func (t *memTx) releaseAll() {
	for i := len(t.keys) - 1; i >= 0; i-- {
		t.s.locks.release(t.keys[i])
	}
	t.keys = nil
}

func (t *memTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	if err := t.lock(ctx, "account:"+id); err != nil {
		return nil, err
	}
	if a, ok := t.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	t.s.mu.RLock()
	a, ok := t.s.accounts[id]
	t.s.mu.RUnlock()
	if !ok {
		a = models.Account{ID: id, UpdatedAt: time.Now().UTC()}
	}
	t.accounts[id] = &a
	cp := a
	return &cp, nil
}

func (t *memTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	staged, ok := t.accounts[a.ID]
	if !ok {
		return fmt.Errorf("memory: account %s updated without lock", a.ID)
	}
	if staged.Version != a.Version {
		return store.ErrConflict
	}
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	*staged = *a
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	t.s.mu.RLock()
	_, exists := t.s.txns[txn.ID]
	t.s.mu.RUnlock()
	if exists {
		return store.ErrDuplicate
	}
	for _, n := range t.newTxns {
		if n.ID == txn.ID {
			return store.ErrDuplicate
		}
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	t.newTxns = append(t.newTxns, *txn)
	return nil
}

func (t *memTx) LockTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	if err := t.lock(ctx, "txn:"+id); err != nil {
		return nil, err
	}
	if l, ok := t.lockedTxns[id]; ok {
		cp := *l
		return &cp, nil
	}
	for _, n := range t.newTxns {
		if n.ID == id {
			t.lockedTxns[id] = &n
			cp := n
			return &cp, nil
		}
	}
	t.s.mu.RLock()
	txn, ok := t.s.txns[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	t.lockedTxns[id] = &txn
	cp := txn
	return &cp, nil
}

func (t *memTx) ResolveTransaction(ctx context.Context, id string, status models.TransactionStatus, at time.Time) error {
	l, ok := t.lockedTxns[id]
	if !ok {
		return fmt.Errorf("memory: transaction %s resolved without lock", id)
	}
	l.Status = status
	for i := range t.newTxns {
		if t.newTxns[i].ID == id {
			t.newTxns[i].Status = status
			t.newTxns[i].ResolvedAt = &at
			return nil
		}
	}
	t.resolved[id] = resolution{status: status, at: at}
	return nil
}

func (t *memTx) InsertSeries(ctx context.Context, sr *models.Series) error {
	t.s.mu.RLock()
	_, exists := t.s.series[sr.ID]
	t.s.mu.RUnlock()
	if exists {
		return store.ErrDuplicate
	}
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	cp := *sr
	cp.Episodes = nil
	t.newSeries = append(t.newSeries, cp)
	return nil
}

func (t *memTx) InsertEpisode(ctx context.Context, e *models.Episode) error {
	t.s.mu.RLock()
	_, exists := t.s.episodes[e.ID]
	t.s.mu.RUnlock()
	if exists || t.newEpisodes[e.ID] {
		return store.ErrDuplicate
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	t.episodes[e.ID] = &cp
	t.newEpisodes[e.ID] = true
	return nil
}

func (t *memTx) LockEpisode(ctx context.Context, id string) (*models.Episode, error) {
	if err := t.lock(ctx, "episode:"+id); err != nil {
		return nil, err
	}
	if e, ok := t.episodes[id]; ok {
		cp := *e
		return &cp, nil
	}
	t.s.mu.RLock()
	e, ok := t.s.episodes[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	t.episodes[id] = &e
	cp := e
	return &cp, nil
}

func (t *memTx) UpdateEpisode(ctx context.Context, e *models.Episode) error {
	staged, ok := t.episodes[e.ID]
	if !ok || !t.held["episode:"+e.ID] {
		return fmt.Errorf("memory: episode %s updated without lock", e.ID)
	}
	if staged.Version != e.Version {
		return store.ErrConflict
	}
	e.Version++
	*staged = *e
	return nil
}

func (t *memTx) InsertReview(ctx context.Context, r *models.Review) error {
	t.s.mu.RLock()
	_, exists := t.s.reviews[r.ID]
	t.s.mu.RUnlock()
	if exists || t.newReviews[r.ID] {
		return store.ErrDuplicate
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	t.reviews[r.ID] = &cp
	t.newReviews[r.ID] = true
	return nil
}

func (t *memTx) LockReview(ctx context.Context, id string) (*models.Review, error) {
	if err := t.lock(ctx, "review:"+id); err != nil {
		return nil, err
	}
	if r, ok := t.reviews[id]; ok {
		cp := *r
		return &cp, nil
	}
	t.s.mu.RLock()
	r, ok := t.s.reviews[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	t.reviews[id] = &r
	cp := r
	return &cp, nil
}

func (t *memTx) UpdateReview(ctx context.Context, r *models.Review) error {
	staged, ok := t.reviews[r.ID]
	if !ok || !t.held["review:"+r.ID] {
		return fmt.Errorf("memory: review %s updated without lock", r.ID)
	}
	if staged.Version != r.Version {
		return store.ErrConflict
	}
	r.Version++
	*staged = *r
	return nil
}

func (t *memTx) InsertReviewVote(ctx context.Context, v *models.ReviewVote) error {
	// The vote key lock plays the role of a unique index: two transactions
	// inserting the same key serialize here.
	if err := t.lock(ctx, fmt.Sprintf("vote:%s:%s:%s", v.ReviewID, v.VoterID, v.Kind)); err != nil {
		return err
	}
	k := voteKey{v.ReviewID, v.VoterID, v.Kind}
	t.s.mu.RLock()
	_, exists := t.s.votes[k]
	t.s.mu.RUnlock()
	if exists {
		return store.ErrDuplicate
	}
	for _, staged := range t.votes {
		if staged.ReviewID == v.ReviewID && staged.VoterID == v.VoterID && staged.Kind == v.Kind {
			return store.ErrDuplicate
		}
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	t.votes = append(t.votes, *v)
	return nil
}
