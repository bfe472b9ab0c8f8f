package models

import (
	"time"
)

// Account holds a user's spendable coins and reputation.
type Account struct {
	ID         string    `json:"id" db:"id"`
	Balance    int64     `json:"balance" db:"balance"` // smallest coin unit, never negative
	Reputation int64     `json:"reputation" db:"reputation"`
	Version    int       `json:"version" db:"version"` // for optimistic locking
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CanDebit reports whether amount (a positive debit) fits the balance.
func (a *Account) CanDebit(amount int64) bool {
	return a.Balance-amount >= 0
}
