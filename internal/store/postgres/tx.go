package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

type pgTx struct {
	tx *sql.Tx
}

// expectOne turns a zero-row update into store.ErrConflict.
func expectOne(res sql.Result, err error, what string) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: optimistic lock failed for %s", store.ErrConflict, what)
	}
	return nil
}

func (t *pgTx) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, reputation, version, updated_at)
		VALUES ($1, 0, 0, 0, $2)
		ON CONFLICT (id) DO NOTHING`, id, time.Now().UTC()); err != nil {
		return nil, mapError(err)
	}
	return scanAccount(t.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, reputation = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		a.Balance, a.Reputation, now, a.ID, a.Version)
	if err := expectOne(res, err, "account "+a.ID); err != nil {
		return err
	}
	a.Version++
	a.UpdatedAt = now
	return nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, amount, reputation_delta, kind, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.AccountID, txn.Amount, txn.ReputationDelta, txn.Kind, txn.Status, txn.Reference, txn.CreatedAt)
	return mapError(err)
}

func (t *pgTx) LockTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return scanTransaction(t.tx.QueryRowContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
}

// ResolveTransaction only moves a pending row; a second resolution conflicts.
func (t *pgTx) ResolveTransaction(ctx context.Context, id string, status models.TransactionStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, resolved_at = $2
		WHERE id = $3 AND status = $4`,
		status, at, id, models.TxnPending)
	return expectOne(res, err, "transaction "+id)
}

func (t *pgTx) InsertSeries(ctx context.Context, sr *models.Series) error {
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO series (id, author_id, title, description, cover_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sr.ID, sr.AuthorID, sr.Title, sr.Description, sr.CoverURL, sr.CreatedAt)
	return mapError(err)
}

func (t *pgTx) InsertEpisode(ctx context.Context, e *models.Episode) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO episodes (id, series_id, author_id, title, url, votes_required, collected_funds, state, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.SeriesID, e.AuthorID, e.Title, e.URL, e.VotesRequired, e.CollectedFunds, e.State, e.Version, e.CreatedAt)
	return mapError(err)
}

func (t *pgTx) LockEpisode(ctx context.Context, id string) (*models.Episode, error) {
	return scanEpisode(t.tx.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateEpisode(ctx context.Context, e *models.Episode) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE episodes
		SET collected_funds = $1, state = $2, released_at = $3, version = version + 1
		WHERE id = $4 AND version = $5`,
		e.CollectedFunds, e.State, e.ReleasedAt, e.ID, e.Version)
	if err := expectOne(res, err, "episode "+e.ID); err != nil {
		return err
	}
	e.Version++
	return nil
}

func (t *pgTx) InsertReview(ctx context.Context, r *models.Review) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reviews (id, episode_id, critic_id, kind, content, current_votes, cancel_votes, state, impact_amount, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.EpisodeID, r.CriticID, r.Kind, r.Content, r.CurrentVotes, r.CancelVotes, r.State, r.ImpactAmount, r.Version, r.CreatedAt)
	return mapError(err)
}

func (t *pgTx) LockReview(ctx context.Context, id string) (*models.Review, error) {
	return scanReview(t.tx.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateReview(ctx context.Context, r *models.Review) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE reviews
		SET current_votes = $1, cancel_votes = $2, state = $3, impact_amount = $4, settled_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`,
		r.CurrentVotes, r.CancelVotes, r.State, r.ImpactAmount, r.SettledAt, r.ID, r.Version)
	if err := expectOne(res, err, "review "+r.ID); err != nil {
		return err
	}
	r.Version++
	return nil
}

// InsertReviewVote relies on UNIQUE (review_id, voter_id, kind).
func (t *pgTx) InsertReviewVote(ctx context.Context, v *models.ReviewVote) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO review_votes (review_id, voter_id, kind, created_at)
		VALUES ($1, $2, $3, $4)`,
		v.ReviewID, v.VoterID, v.Kind, v.CreatedAt)
	return mapError(err)
}
