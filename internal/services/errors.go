package services

import (
	"errors"
	"fmt"

	"github.com/castfund/backend/internal/store"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrEntityAlreadySettled = errors.New("entity already settled")
	ErrEpisodeAlreadyFunded = fmt.Errorf("episode already funded: %w", ErrEntityAlreadySettled)
	ErrReviewAlreadySettled = fmt.Errorf("review already settled: %w", ErrEntityAlreadySettled)
	ErrDepositResolved      = fmt.Errorf("deposit already resolved: %w", ErrEntityAlreadySettled)
	ErrDuplicateVote        = errors.New("duplicate vote")
	ErrConcurrencyConflict  = errors.New("concurrency conflict")
	ErrNotFound             = errors.New("not found")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("forbidden")
)

// storeError maps store sentinels onto service errors, keeping both in the chain.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	return err
}
