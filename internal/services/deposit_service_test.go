package services

import (
	"context"
	"encoding/hex"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
)

func TestDepositService_TwoPhase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	intent, err := f.deposits.Initiate(ctx, "alice", 250)
	require.NoError(t, err)
	assert.NotEmpty(t, intent.QRImage)

	u, err := url.Parse(intent.ConfirmationURL)
	require.NoError(t, err)
	assert.Equal(t, "pay.test", u.Host)
	assert.Equal(t, intent.TransactionID, u.Query().Get("transactionId"))

	t.Run("pending does not count", func(t *testing.T) {
		txn, err := f.deposits.Status(ctx, "alice", intent.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, models.TxnPending, txn.Status)
		assert.Zero(t, f.balance(t, "alice").Balance)
		f.assertReconciled(t)
	})

	t.Run("other accounts cannot read it", func(t *testing.T) {
		_, err := f.deposits.Status(ctx, "mallory", intent.TransactionID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("confirmation credits exactly once", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				txn, err := f.deposits.Confirm(ctx, intent.TransactionID, true)
				assert.NoError(t, err)
				assert.Equal(t, models.TxnCompleted, txn.Status)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(250), f.balance(t, "alice").Balance)
		assert.Len(t, f.pub.Of(events.TransactionSuccess), 1)
		f.assertReconciled(t)
	})

	t.Run("contradicting outcome is rejected", func(t *testing.T) {
		_, err := f.deposits.Confirm(ctx, intent.TransactionID, false)
		assert.ErrorIs(t, err, ErrDepositResolved)
		assert.ErrorIs(t, err, ErrEntityAlreadySettled)
	})
}

func TestDepositService_FailedDeposit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	intent, err := f.deposits.Initiate(ctx, "bob", 100)
	require.NoError(t, err)

	txn, err := f.deposits.Confirm(ctx, intent.TransactionID, false)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, txn.Status)
	assert.Zero(t, f.balance(t, "bob").Balance)
	assert.Len(t, f.pub.Of(events.TransactionFailed), 1)
	f.assertReconciled(t)
}

func TestDepositService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.deposits.Initiate(ctx, "carol", -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.deposits.Initiate(ctx, "carol", MaxDeposit+1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.deposits.Confirm(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)

	f.fund(t, "carol", 10)
	items, _, err := f.ledger.Transactions(ctx, "carol", 1, 10)
	require.NoError(t, err)
	_, err = f.deposits.Confirm(ctx, items[0].ID, false)
	assert.ErrorIs(t, err, ErrDepositResolved)
}

func TestDepositService_VerifySignature(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"transactionId":"t1","status":"succeeded"}`)
	good := hex.EncodeToString(Sign("s3cret", body))

	assert.True(t, f.deposits.VerifySignature(body, good))
	assert.False(t, f.deposits.VerifySignature(body, hex.EncodeToString(Sign("other", body))))
	assert.False(t, f.deposits.VerifySignature(body, "not-hex"))
}
