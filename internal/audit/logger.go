// Package audit writes one structured line per economic operation.
package audit

import (
	"log/slog"
	"strconv"
	"time"
)

type Event struct {
	Timestamp     time.Time
	EventType     string
	TransactionID string
	AccountID     string
	Amount        int64
	Status        string
	Details       map[string]string
}

type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log.With("component", "audit")}
}

// LogLedger records a single ledger entry.
func (a *Logger) LogLedger(transactionID, accountID, kind string, amount, repDelta int64, status string) {
	a.emit(Event{
		Timestamp:     time.Now().UTC(),
		EventType:     "LEDGER",
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        amount,
		Status:        status,
		Details: map[string]string{
			"kind":             kind,
			"reputation_delta": strconv.FormatInt(repDelta, 10),
		},
	})
}

// LogSettlement records a FUNDING→RELEASED or OPEN→EXECUTED/CANCELED move.
func (a *Logger) LogSettlement(entity, entityID, state string, amount int64) {
	a.emit(Event{
		Timestamp: time.Now().UTC(),
		EventType: "SETTLEMENT",
		Amount:    amount,
		Status:    state,
		Details: map[string]string{
			"entity":    entity,
			"entity_id": entityID,
		},
	})
}

func (a *Logger) LogError(transactionID, accountID string, err error) {
	a.emit(Event{
		Timestamp:     time.Now().UTC(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) emit(e Event) {
	attrs := []any{
		"event_type", e.EventType,
		"status", e.Status,
		"timestamp", e.Timestamp,
	}
	if e.TransactionID != "" {
		attrs = append(attrs, "transaction_id", e.TransactionID)
	}
	if e.AccountID != "" {
		attrs = append(attrs, "account_id", e.AccountID)
	}
	if e.Amount != 0 {
		attrs = append(attrs, "amount", e.Amount)
	}
	for k, v := range e.Details {
		attrs = append(attrs, k, v)
	}
	a.log.Info("AUDIT", attrs...)
}
