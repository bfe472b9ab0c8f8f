package handlers

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/services"
)

func (e *testEnv) callback(t *testing.T, body string, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/deposit/callback", bytes.NewBufferString(body))
	req.Header.Set(signatureHeader, hex.EncodeToString(services.Sign(secret, []byte(body))))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestWalletHandler_DepositFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/wallet/deposit", "alice", map[string]any{"amount": 250})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	intent := decode[services.DepositIntent](t, w)
	assert.Contains(t, intent.ConfirmationURL, intent.TransactionID)
	assert.NotEmpty(t, intent.QRImage)

	w = env.do(t, http.MethodGet, "/api/v1/wallet/deposit/"+intent.TransactionID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TxnPending, decode[models.Transaction](t, w).Status)

	body := `{"transactionId":"` + intent.TransactionID + `","status":"succeeded"}`

	t.Run("forged callback", func(t *testing.T) {
		w := env.callback(t, body, "guess")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("signed callback credits once", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			w := env.callback(t, body, webhookSecret)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}
		w := env.do(t, http.MethodGet, "/api/v1/wallet/balance", "alice", nil)
		assert.Equal(t, BalanceResponse{Balance: 250}, decode[BalanceResponse](t, w))
	})

	t.Run("contradicting callback", func(t *testing.T) {
		w := env.callback(t, `{"transactionId":"`+intent.TransactionID+`","status":"failed"}`, webhookSecret)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("other account cannot poll it", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/wallet/deposit/"+intent.TransactionID, "mallory", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestWalletHandler_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		user string
		body any
		want int
	}{
		{"unauthenticated", "", map[string]any{"amount": 10}, http.StatusUnauthorized},
		{"zero amount", "alice", map[string]any{"amount": 0}, http.StatusBadRequest},
		{"unknown field", "alice", map[string]any{"amount": 10, "currency": "NGN"}, http.StatusBadRequest},
		{"above deposit limit", "alice", map[string]any{"amount": int64(1_000_000_001)}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/wallet/deposit", tt.user, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWalletHandler_Transactions(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.fund(t, "bob", 10)
	}

	w := env.do(t, http.MethodGet, "/api/v1/wallet/transactions?page=2&limit=2", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[TransactionsResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Page)

	w = env.do(t, http.MethodGet, "/api/v1/wallet/transactions?limit=500", "bob", nil)
	assert.Equal(t, 20, decode[TransactionsResponse](t, w).Limit)
}
