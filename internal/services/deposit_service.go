package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/png"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/models"
	"github.com/castfund/backend/internal/store"
)

// DepositIntent is the first half of a deposit: a pending transaction and
// the page where the payer confirms it.
type DepositIntent struct {
	TransactionID   string `json:"transactionId"`
	ConfirmationURL string `json:"confirmationUrl"`
	QRImage         string `json:"qrImage"` // base64 PNG of ConfirmationURL
}

// DepositService runs the two-phase deposit: Initiate records a pending
// transaction, Confirm resolves it exactly once when the gateway calls back.
type DepositService struct {
	ledger  *LedgerService
	gateway *config.GatewayConfig
}

// MaxDeposit caps a single deposit.
const MaxDeposit int64 = 1_000_000_000

func NewDepositService(ledger *LedgerService, gateway *config.GatewayConfig) *DepositService {
	return &DepositService{ledger: ledger, gateway: gateway}
}

func (s *DepositService) Initiate(ctx context.Context, accountID string, amount int64) (*DepositIntent, error) {
	if amount <= 0 || amount > MaxDeposit {
		return nil, fmt.Errorf("%w: deposit of %d", ErrInvalidAmount, amount)
	}

	txn := &models.Transaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		Kind:      models.KindDeposit,
		Status:    models.TxnPending,
	}
	err := s.ledger.execute(ctx, "deposit_initiate", func(tx store.Tx, out *Outbox) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	confirmURL, err := s.confirmationURL(txn.ID, amount)
	if err != nil {
		return nil, err
	}
	qrImage, err := encodeQR(confirmURL)
	if err != nil {
		return nil, err
	}

	s.ledger.logger.Info("[DEPOSIT] initiated", "transaction_id", txn.ID, "account_id", accountID, "amount", amount)
	return &DepositIntent{
		TransactionID:   txn.ID,
		ConfirmationURL: confirmURL,
		QRImage:         qrImage,
	}, nil
}

// Confirm resolves a pending deposit. Repeating the same outcome is a no-op;
// a contradicting outcome fails with ErrDepositResolved.
func (s *DepositService) Confirm(ctx context.Context, transactionID string, succeeded bool) (*models.Transaction, error) {
	want := models.TxnFailed
	if succeeded {
		want = models.TxnCompleted
	}

	var result *models.Transaction
	err := s.ledger.execute(ctx, "deposit_confirm", func(tx store.Tx, out *Outbox) error {
		txn, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Kind != models.KindDeposit {
			return fmt.Errorf("transaction %s is not a deposit: %w", transactionID, ErrNotFound)
		}
		if txn.IsTerminal() {
			if txn.Status == want {
				result = txn
				return nil
			}
			return fmt.Errorf("transaction %s is %s: %w", transactionID, txn.Status, ErrDepositResolved)
		}

		if succeeded {
			account, err := tx.LockAccount(ctx, txn.AccountID)
			if err != nil {
				return err
			}
			if err := s.ledger.adjust(ctx, tx, out, account, txn.Amount, 0); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.ResolveTransaction(ctx, txn.ID, want, now); err != nil {
			return err
		}
		txn.Status = want
		txn.ResolvedAt = &now
		out.ledger = append(out.ledger, *txn)

		evType := events.TransactionFailed
		if succeeded {
			evType = events.TransactionSuccess
		}
		out.Add(events.New(evType, events.Keys{Accounts: []string{txn.AccountID}}, TransactionPayload{
			TransactionID: txn.ID,
			Amount:        txn.Amount,
			Status:        txn.Status,
		}))
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Status serves the poll fallback; other accounts' deposits read as missing.
func (s *DepositService) Status(ctx context.Context, accountID, transactionID string) (*models.Transaction, error) {
	txn, err := s.ledger.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, storeError(err)
	}
	if txn.AccountID != accountID || txn.Kind != models.KindDeposit {
		return nil, ErrNotFound
	}
	return txn, nil
}

// VerifySignature checks the gateway's hex HMAC-SHA256 of the raw body.
func (s *DepositService) VerifySignature(body []byte, signature string) bool {
	if s.gateway.WebhookSecret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(s.gateway.WebhookSecret, body))
}

// Sign computes the webhook signature the gateway is expected to send.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func (s *DepositService) confirmationURL(transactionID string, amount int64) (string, error) {
	u, err := url.Parse(s.gateway.BaseURL)
	if err != nil {
		return "", fmt.Errorf("gateway base url: %w", err)
	}
	q := u.Query()
	q.Set("transactionId", transactionID)
	q.Set("amount", fmt.Sprint(amount))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func encodeQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
