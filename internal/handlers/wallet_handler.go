package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/services"
)

const signatureHeader = "X-Gateway-Signature"

type WalletHandler struct {
	ledger    *services.LedgerService
	deposits  *services.DepositService
	validator *RequestValidator
	logger    *slog.Logger
}

func NewWalletHandler(ledger *services.LedgerService, deposits *services.DepositService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		deposits:  deposits,
		validator: NewRequestValidator(),
		logger:    logger,
	}
}

type depositRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0,lte=1000000000"`
}

type depositCallbackRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=succeeded failed"`
}

type BalanceResponse struct {
	Balance    int64 `json:"balance"`
	Reputation int64 `json:"reputation"`
}

type TransactionsResponse struct {
	Items []models.Transaction `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// Deposit starts a two-phase deposit
// @Summary Initiate deposit
// @Description Records a pending deposit and returns the confirmation URL and its QR code
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body depositRequest true "Deposit request"
// @Success 201 {object} services.DepositIntent
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /wallet/deposit [post]
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	intent, err := h.deposits.Initiate(r.Context(), userID, req.Amount)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// DepositCallback resolves a pending deposit
// @Summary Payment gateway callback
// @Description Resolves a pending deposit exactly once. The body must be signed with HMAC-SHA256 in X-Gateway-Signature.
// @Tags Wallet
// @Accept json
// @Produce json
// @Param X-Gateway-Signature header string true "hex HMAC-SHA256 of the body"
// @Param request body depositCallbackRequest true "Gateway outcome"
// @Success 200 {object} models.Transaction
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /wallet/deposit/callback [post]
func (h *WalletHandler) DepositCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if !h.deposits.VerifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("[DEPOSIT] rejected callback with bad signature", "remote", r.RemoteAddr)
		writeError(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	var req depositCallbackRequest
	r.Body = io.NopCloser(bytes.NewReader(body))
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txn, err := h.deposits.Confirm(r.Context(), req.TransactionID, req.Status == "succeeded")
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// DepositStatus is the poll fallback for clients without a live stream
// @Summary Deposit status
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /wallet/deposit/{txId} [get]
func (h *WalletHandler) DepositStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	txn, err := h.deposits.Status(r.Context(), userID, chi.URLParam(r, "txId"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// Balance
// @Summary Wallet balance
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Router /wallet/balance [get]
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	a, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: a.Balance, Reputation: a.Reputation})
}

// Transactions
// @Summary Transaction history
// @Description Newest first
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size, at most 100"
// @Success 200 {object} TransactionsResponse
// @Router /wallet/transactions [get]
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	items, total, err := h.ledger.Transactions(r.Context(), userID, page, limit)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionsResponse{Items: items, Total: total, Page: page, Limit: limit})
}
