// Package store defines the persistence collaborator of the economy engine.
//
// Every mutation happens inside WithTx. Lock* methods take a row lock that is
// held until the transaction commits or rolls back, so read-modify-write
// sequences on one account, episode or review are linearizable. Callers lock
// in a fixed order (review, episode, accounts) to keep waits short.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/castfund/backend/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict signals a lost optimistic update, a lock wait timeout,
	// a serialization failure or a deadlock. The unit was rolled back and
	// may be retried.
	ErrConflict = errors.New("store: concurrent update conflict")
	// ErrDuplicate is a unique constraint violation.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store is an atomic, transactional persistence layer.
type Store interface {
	Reader

	// WithTx runs fn in one all-or-nothing unit. If fn returns an error
	// nothing it wrote is kept.
	WithTx(ctx context.Context, fn func(Tx) error) error

	Close() error
}

// Reader serves committed state without taking locks.
type Reader interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, int, error)
	// SumCompleted totals completed amounts and reputation deltas for one account.
	SumCompleted(ctx context.Context, accountID string) (balance, reputation int64, err error)

	GetSeries(ctx context.Context, id string) (*models.Series, error)
	ListSeriesByAuthor(ctx context.Context, authorID string) ([]models.Series, error)
	GetEpisode(ctx context.Context, id string) (*models.Episode, error)

	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListReviews(ctx context.Context, episodeID string) ([]models.Review, error)
}

// Tx is the write side, valid only inside WithTx.
type Tx interface {
	// LockAccount locks the account row, creating an empty account first
	// when it does not exist yet.
	LockAccount(ctx context.Context, id string) (*models.Account, error)
	// UpdateAccount writes balance and reputation if the version still
	// matches and bumps it; otherwise ErrConflict.
	UpdateAccount(ctx context.Context, a *models.Account) error

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	LockTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ResolveTransaction(ctx context.Context, id string, status models.TransactionStatus, at time.Time) error

	InsertSeries(ctx context.Context, s *models.Series) error
	InsertEpisode(ctx context.Context, e *models.Episode) error
	LockEpisode(ctx context.Context, id string) (*models.Episode, error)
	UpdateEpisode(ctx context.Context, e *models.Episode) error

	InsertReview(ctx context.Context, r *models.Review) error
	LockReview(ctx context.Context, id string) (*models.Review, error)
	UpdateReview(ctx context.Context, r *models.Review) error
	// InsertReviewVote enforces uniqueness of (review, voter, kind) and
	// returns ErrDuplicate on a repeat, including concurrent repeats.
	InsertReviewVote(ctx context.Context, v *models.ReviewVote) error
}
