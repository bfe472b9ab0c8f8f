package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/audit"
	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
	"github.com/castfund/backend/internal/store/memory"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// Of returns the published events of one type in publish order.
func (m *MockPublisher) Of(t events.Type) []events.Event {
	var out []events.Event
	for _, c := range m.Calls {
		if e := c.Arguments.Get(1).(events.Event); e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// conflictingStore fails the first n units with store.ErrConflict.
type conflictingStore struct {
	store.Store
	n int
}

func (s *conflictingStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if s.n > 0 {
		s.n--
		return store.ErrConflict
	}
	return s.Store.WithTx(ctx, fn)
}

type fixture struct {
	store    store.Store
	pub      *MockPublisher
	economy  *config.EconomyConfig
	ledger   *LedgerService
	funding  *FundingService
	reviews  *ReviewService
	deposits *DepositService
	catalog  *CatalogService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, memory.New(memory.WithLockTimeout(time.Second)))
}

func newFixtureWithStore(t *testing.T, st store.Store) *fixture {
	t.Helper()
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	logger := discardLogger()
	economy := config.DefaultEconomy()
	economy.ExecuteThreshold = 3
	economy.CancelThreshold = 2

	ledger := NewLedgerService(st, pub, &config.RetryConfig{Attempts: 5, BaseDelay: time.Millisecond}, audit.NewLogger(logger), logger)
	return &fixture{
		store:    st,
		pub:      pub,
		economy:  economy,
		ledger:   ledger,
		funding:  NewFundingService(ledger),
		reviews:  NewReviewService(ledger, economy),
		deposits: NewDepositService(ledger, &config.GatewayConfig{BaseURL: "https://pay.test/checkout", WebhookSecret: "s3cret"}),
		catalog:  NewCatalogService(ledger, economy),
	}
}

func (f *fixture) fund(t *testing.T, accountID string, amount int64) {
	t.Helper()
	_, err := f.ledger.ApplyDelta(context.Background(), accountID, amount, models.KindDeposit)
	require.NoError(t, err)
}

func (f *fixture) grantReputation(t *testing.T, accountID string, rep int64) {
	t.Helper()
	err := f.ledger.execute(context.Background(), "grant", func(tx store.Tx, out *Outbox) error {
		_, err := f.ledger.ApplyDeltaTx(context.Background(), tx, out, Delta{
			AccountID: accountID, ReputationDelta: rep, Kind: models.KindReviewReward,
		})
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) episode(t *testing.T, authorID string, required int64) *models.Episode {
	t.Helper()
	ctx := context.Background()
	sr, err := f.catalog.CreateSeries(ctx, authorID, "Series of "+authorID, "", "")
	require.NoError(t, err)
	ep, err := f.catalog.CreateEpisode(ctx, authorID, sr.ID, "Episode", "https://cdn.test/ep.mp4", required)
	require.NoError(t, err)
	return ep
}

func (f *fixture) balance(t *testing.T, accountID string) *models.Account {
	t.Helper()
	a, err := f.ledger.Balance(context.Background(), accountID)
	require.NoError(t, err)
	return a
}

func (f *fixture) assertReconciled(t *testing.T) {
	t.Helper()
	drifts, err := f.ledger.Reconcile(context.Background())
	require.NoError(t, err)
	require.Empty(t, drifts)
}
