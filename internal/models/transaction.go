package models

import (
	"time"
)

type TransactionKind string

const (
	KindDeposit      TransactionKind = "deposit"
	KindFundingVote  TransactionKind = "funding_vote"
	KindReviewFee    TransactionKind = "review_fee"
	KindReviewVote   TransactionKind = "review_vote"
	KindReviewDrain  TransactionKind = "review_drain"
	KindReviewReward TransactionKind = "review_reward"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
)

// Transaction is one append-only ledger record. Only completed transactions
// count toward an account's balance and reputation.
type Transaction struct {
	ID              string            `json:"id" db:"id"`
	AccountID       string            `json:"account_id" db:"account_id"`
	Amount          int64             `json:"amount" db:"amount"` // signed
	ReputationDelta int64             `json:"reputation_delta" db:"reputation_delta"`
	Kind            TransactionKind   `json:"kind" db:"kind"`
	Status          TransactionStatus `json:"status" db:"status"`
	Reference       string            `json:"reference,omitempty" db:"reference"` // episode, review or gateway id
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty" db:"resolved_at"`
}

func (t *Transaction) IsTerminal() bool {
	return t.Status == TxnCompleted || t.Status == TxnFailed
}
