// Package postgres implements store.Store on database/sql with lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

const (
	accountColumns = "id, balance, reputation, version, updated_at"
	txnColumns     = "id, account_id, amount, reputation_delta, kind, status, reference, created_at, resolved_at"
	seriesColumns  = "id, author_id, title, description, cover_url, created_at"
	episodeColumns = "id, series_id, author_id, title, url, votes_required, collected_funds, state, version, created_at, released_at"
	reviewColumns  = "id, episode_id, critic_id, kind, content, current_votes, cancel_votes, state, impact_amount, version, created_at, settled_at"
)

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithLockTimeout sets lock_timeout for every transaction. Zero leaves the
// server default in place.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, lockTimeout: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return mapError(err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pqErr.Message)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Message)
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.Balance, &a.Reputation, &a.Version, &a.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var resolved sql.NullTime
	if err := row.Scan(&t.ID, &t.AccountID, &t.Amount, &t.ReputationDelta, &t.Kind, &t.Status,
		&t.Reference, &t.CreatedAt, &resolved); err != nil {
		return nil, mapError(err)
	}
	t.ResolvedAt = nullTime(resolved)
	return &t, nil
}

func scanSeries(row rowScanner) (*models.Series, error) {
	var sr models.Series
	if err := row.Scan(&sr.ID, &sr.AuthorID, &sr.Title, &sr.Description, &sr.CoverURL, &sr.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &sr, nil
}

func scanEpisode(row rowScanner) (*models.Episode, error) {
	var e models.Episode
	var released sql.NullTime
	if err := row.Scan(&e.ID, &e.SeriesID, &e.AuthorID, &e.Title, &e.URL, &e.VotesRequired,
		&e.CollectedFunds, &e.State, &e.Version, &e.CreatedAt, &released); err != nil {
		return nil, mapError(err)
	}
	e.ReleasedAt = nullTime(released)
	return &e, nil
}

func scanReview(row rowScanner) (*models.Review, error) {
	var r models.Review
	var settled sql.NullTime
	if err := row.Scan(&r.ID, &r.EpisodeID, &r.CriticID, &r.Kind, &r.Content, &r.CurrentVotes,
		&r.CancelVotes, &r.State, &r.ImpactAmount, &r.Version, &r.CreatedAt, &settled); err != nil {
		return nil, mapError(err)
	}
	r.SettledAt = nullTime(settled)
	return &r, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id))
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, int, error) {
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func (s *Store) SumCompleted(ctx context.Context, accountID string) (int64, int64, error) {
	var balance, reputation int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(reputation_delta), 0)
		FROM transactions
		WHERE account_id = $1 AND status = $2`,
		accountID, models.TxnCompleted).Scan(&balance, &reputation)
	if err != nil {
		return 0, 0, mapError(err)
	}
	return balance, reputation, nil
}

func (s *Store) GetSeries(ctx context.Context, id string) (*models.Series, error) {
	sr, err := scanSeries(s.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if sr.Episodes, err = s.episodesOf(ctx, sr.ID); err != nil {
		return nil, err
	}
	return sr, nil
}

func (s *Store) ListSeriesByAuthor(ctx context.Context, authorID string) ([]models.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE author_id = $1 ORDER BY created_at DESC`, authorID)
	if err != nil {
		return nil, mapError(err)
	}
	var out []models.Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *sr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range out {
		if out[i].Episodes, err = s.episodesOf(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) episodesOf(ctx context.Context, seriesID string) ([]models.Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE series_id = $1 ORDER BY created_at`, seriesID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []models.Episode{}
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	return scanEpisode(s.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE id = $1`, id))
}

func (s *Store) GetReview(ctx context.Context, id string) (*models.Review, error) {
	return scanReview(s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
}

func (s *Store) ListReviews(ctx context.Context, episodeID string) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE episode_id = $1 ORDER BY created_at DESC`, episodeID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []models.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
