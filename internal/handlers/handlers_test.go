package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/audit"
	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/middleware"
	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/services"
	"github.com/castfund/backend/internal/store/memory"
)

const webhookSecret = "whsec"

type testEnv struct {
	router     chi.Router
	dispatcher *events.Dispatcher
	ledger     *services.LedgerService
}

// testAuth trusts the X-User header or the user query parameter.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User")
		if id == "" {
			id = r.URL.Query().Get("user")
		}
		if id == "" {
			writeError(w, "Unauthorized", http.StatusUnauthorized, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), id)))
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := memory.New(memory.WithLockTimeout(time.Second))
	dispatcher := events.NewDispatcher(32, logger)
	t.Cleanup(dispatcher.Close)

	economy := config.DefaultEconomy()
	economy.ExecuteThreshold = 2
	economy.CancelThreshold = 2

	ledger := services.NewLedgerService(st, dispatcher,
		&config.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond}, audit.NewLogger(logger), logger)
	deposits := services.NewDepositService(ledger, &config.GatewayConfig{
		BaseURL:       "https://pay.test/checkout",
		WebhookSecret: webhookSecret,
	})
	catalog := services.NewCatalogService(ledger, economy)

	api := &API{
		Wallet:  NewWalletHandler(ledger, deposits, logger),
		Videos:  NewVideoHandler(services.NewFundingService(ledger), catalog, logger),
		Reviews: NewReviewHandler(services.NewReviewService(ledger, economy), logger),
		Events:  NewEventsHandler(dispatcher, dispatcher, 0, logger),
	}
	r := chi.NewRouter()
	api.Mount(r, testAuth, 5*time.Second)

	return &testEnv{router: r, dispatcher: dispatcher, ledger: ledger}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) fund(t *testing.T, user string, amount int64) {
	t.Helper()
	_, err := e.ledger.ApplyDelta(t.Context(), user, amount, models.KindDeposit)
	require.NoError(t, err)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
