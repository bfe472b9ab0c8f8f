package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/castfund/backend/internal/audit"
	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/metrics"
	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

// Delta is one signed change to an account.
type Delta struct {
	AccountID       string
	Amount          int64
	ReputationDelta int64
	Kind            models.TransactionKind
	Reference       string
}

// Drift is an account whose cached totals disagree with its ledger.
type Drift struct {
	AccountID        string `json:"accountId"`
	Balance          int64  `json:"balance"`
	LedgerBalance    int64  `json:"ledgerBalance"`
	Reputation       int64  `json:"reputation"`
	LedgerReputation int64  `json:"ledgerReputation"`
}

// LedgerService owns every balance and reputation mutation and runs the
// units of work of the other services.
type LedgerService struct {
	store     store.Store
	publisher events.Publisher
	retry     retrier
	audit     *audit.Logger
	logger    *slog.Logger
}

func NewLedgerService(st store.Store, publisher events.Publisher, retry *config.RetryConfig, auditLog *audit.Logger, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:     st,
		publisher: publisher,
		retry:     newRetrier(retry, logger),
		audit:     auditLog,
		logger:    logger,
	}
}

// ApplyDelta appends one completed transaction and moves the balance by
// amount. A debit past zero fails with ErrInsufficientFunds and changes
// nothing.
func (s *LedgerService) ApplyDelta(ctx context.Context, accountID string, amount int64, kind models.TransactionKind) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.execute(ctx, "apply_delta", func(tx store.Tx, out *Outbox) error {
		var err error
		txn, err = s.ApplyDeltaTx(ctx, tx, out, Delta{AccountID: accountID, Amount: amount, Kind: kind})
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ApplyDeltaTx is ApplyDelta inside a caller's unit of work.
func (s *LedgerService) ApplyDeltaTx(ctx context.Context, tx store.Tx, out *Outbox, d Delta) (*models.Transaction, error) {
	if d.Amount == 0 && d.ReputationDelta == 0 {
		return nil, ErrInvalidAmount
	}

	account, err := tx.LockAccount(ctx, d.AccountID)
	if err != nil {
		return nil, err
	}
	if err := s.adjust(ctx, tx, out, account, d.Amount, d.ReputationDelta); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:              uuid.NewString(),
		AccountID:       d.AccountID,
		Amount:          d.Amount,
		ReputationDelta: d.ReputationDelta,
		Kind:            d.Kind,
		Status:          models.TxnCompleted,
		Reference:       d.Reference,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}
	out.ledger = append(out.ledger, *txn)
	return txn, nil
}

// adjust writes new totals to an account already locked by tx.
func (s *LedgerService) adjust(ctx context.Context, tx store.Tx, out *Outbox, account *models.Account, amount, repDelta int64) error {
	if amount < 0 && !account.CanDebit(-amount) {
		return fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, account.ID, account.Balance, -amount)
	}
	if overflows(account.Balance, amount) || overflows(account.Reputation, repDelta) {
		return fmt.Errorf("%w: account %s totals would overflow", ErrInvalidAmount, account.ID)
	}
	account.Balance += amount
	account.Reputation += repDelta
	if err := tx.UpdateAccount(ctx, account); err != nil {
		return err
	}
	out.balance(account)
	return nil
}

func overflows(total, delta int64) bool {
	return (delta > 0 && total > math.MaxInt64-delta) || (delta < 0 && total < math.MinInt64-delta)
}

// lockAccounts locks ids in sorted order so units touching several accounts
// never wait on each other in a cycle.
func lockAccounts(ctx context.Context, tx store.Tx, ids ...string) (map[string]*models.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	locked := make(map[string]*models.Account, len(sorted))
	for _, id := range sorted {
		if _, ok := locked[id]; ok || id == "" {
			continue
		}
		a, err := tx.LockAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = a
	}
	return locked, nil
}

// execute runs fn as one retried unit of work and publishes what it
// collected once the unit has committed.
func (s *LedgerService) execute(ctx context.Context, op string, fn func(tx store.Tx, out *Outbox) error) error {
	var out Outbox
	err := s.retry.do(ctx, op, func() error {
		out.reset()
		return s.store.WithTx(ctx, func(tx store.Tx) error {
			return fn(tx, &out)
		})
	})
	if err != nil {
		metrics.LedgerOperations.WithLabelValues(op, outcome(err)).Inc()
		return storeError(err)
	}
	metrics.LedgerOperations.WithLabelValues(op, "ok").Inc()

	for _, t := range out.ledger {
		s.audit.LogLedger(t.ID, t.AccountID, string(t.Kind), t.Amount, t.ReputationDelta, string(t.Status))
	}
	for _, st := range out.settled {
		metrics.Settlements.WithLabelValues(st.entity, st.state).Inc()
		s.audit.LogSettlement(st.entity, st.id, st.state, st.amount)
	}
	s.publish(ctx, out.all())
	return nil
}

// publish never fails the caller: the state is already committed.
func (s *LedgerService) publish(ctx context.Context, evs []events.Event) {
	for _, e := range evs {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("[EVENTS] publish failed", "type", e.Type, "event_id", e.ID, "error", err)
		}
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, ErrEntityAlreadySettled), errors.Is(err, ErrDuplicateVote), errors.Is(err, store.ErrDuplicate):
		return "rejected"
	}
	return "error"
}

// Balance returns an empty account for ids never touched.
func (s *LedgerService) Balance(ctx context.Context, accountID string) (*models.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.Account{ID: accountID}, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Transactions pages an account's history newest first; page starts at 1.
func (s *LedgerService) Transactions(ctx context.Context, accountID string, page, limit int) ([]models.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if page-1 > math.MaxInt/limit {
		_, total, err := s.store.ListTransactions(ctx, accountID, 0, 0)
		return []models.Transaction{}, total, err
	}
	return s.store.ListTransactions(ctx, accountID, limit, (page-1)*limit)
}

// Reconcile checks balance == Σ completed amounts and reputation ==
// Σ completed reputation deltas for every account.
func (s *LedgerService) Reconcile(ctx context.Context) ([]Drift, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, a := range accounts {
		balance, reputation, err := s.store.SumCompleted(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("sum ledger for %s: %w", a.ID, err)
		}
		if balance != a.Balance || reputation != a.Reputation {
			drifts = append(drifts, Drift{
				AccountID:        a.ID,
				Balance:          a.Balance,
				LedgerBalance:    balance,
				Reputation:       a.Reputation,
				LedgerReputation: reputation,
			})
		}
	}
	if len(drifts) > 0 {
		s.logger.Error("[LEDGER] reconciliation drift", "accounts", len(drifts))
	}
	return drifts, nil
}
