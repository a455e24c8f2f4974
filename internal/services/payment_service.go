package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"

	"payments/internal/db"
	"payments/internal/models"
	"payments/internal/money"
	"payments/internal/signature"
	"payments/internal/store"
	"payments/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrUserNotFound     = errors.New("user not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountMismatch  = errors.New("account does not belong to user")
)

type PaymentService struct {
	txRunner     db.TxRunner
	verifier     *signature.Verifier
	userStore    UserStore
	accountStore AccountStore
	paymentStore PaymentStore
	auditStore   AuditStore
	hub          PaymentHub
}

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (map[string]any, error)
}

type AccountStore interface {
	GetByID(ctx context.Context, accountID int64) (models.Account, error)
	Credit(ctx context.Context, tx store.Getter, accountID, userID, amount int64) (int64, error)
}

type PaymentStore interface {
	GetByTransactionID(ctx context.Context, q store.Getter, transactionID string) (models.Payment, error)
	Insert(ctx context.Context, tx store.Getter, input store.PaymentInput) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorType string, actorID *int64, action, entityType, entityID, data string) error
}

type PaymentHub interface {
	BroadcastPayment(userID int64, update websocket.PaymentUpdate)
}

func NewPaymentService(txRunner db.TxRunner, verifier *signature.Verifier, userStore UserStore, accountStore AccountStore, paymentStore PaymentStore, auditStore AuditStore, hub PaymentHub) *PaymentService {
	return &PaymentService{
		txRunner:     txRunner,
		verifier:     verifier,
		userStore:    userStore,
		accountStore: accountStore,
		paymentStore: paymentStore,
		auditStore:   auditStore,
		hub:          hub,
	}
}

type WebhookRequest struct {
	TransactionID string
	UserID        int64
	AccountID     int64
	// Amount keeps the exact lexical form from the wire: the signature is
	// computed over the string as the provider sent it.
	Amount    string
	Signature string
}

type WebhookResult struct {
	AlreadyProcessed bool
	PaymentID        int64
	NewBalance       int64
	Currency         string
}

// ProcessWebhook credits an account exactly once per transaction_id. The
// duplicate check, ledger insert and balance credit share one serializable
// transaction; a unique violation raced in by a concurrent delivery of the
// same transaction is treated the same as finding the row up front.
func (s *PaymentService) ProcessWebhook(ctx context.Context, req WebhookRequest) (WebhookResult, error) {
	if !s.verifier.Verify(req.AccountID, req.Amount, req.TransactionID, req.UserID, req.Signature) {
		return WebhookResult{}, ErrInvalidSignature
	}
	amountMinor, err := parseWebhookAmount(req.Amount)
	if err != nil {
		return WebhookResult{}, err
	}
	if _, err := s.userStore.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WebhookResult{}, ErrUserNotFound
		}
		return WebhookResult{}, err
	}
	account, err := s.accountStore.GetByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WebhookResult{}, ErrAccountNotFound
		}
		return WebhookResult{}, err
	}
	if account.UserID != req.UserID {
		return WebhookResult{}, ErrAccountMismatch
	}

	var alreadyProcessed bool
	var paymentID int64
	var newBalance int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		alreadyProcessed = false
		existing, err := s.paymentStore.GetByTransactionID(ctx, tx, req.TransactionID)
		if err == nil {
			alreadyProcessed = true
			paymentID = existing.ID
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		paymentID, err = s.paymentStore.Insert(ctx, tx, store.PaymentInput{
			TransactionID: req.TransactionID,
			AccountID:     req.AccountID,
			UserID:        req.UserID,
			Amount:        amountMinor,
			Status:        "applied",
			Description:   stringPtr("Webhook deposit"),
		})
		if err != nil {
			return err
		}
		newBalance, err = s.accountStore.Credit(ctx, tx, req.AccountID, req.UserID, amountMinor)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAccountNotFound
			}
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"transaction_id": req.TransactionID,
			"account_id":     req.AccountID,
			"amount":         amountMinor,
		})
		return s.auditStore.Log(ctx, tx, "provider", nil, "webhook_credit", "payment", req.TransactionID, string(data))
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			log.Printf("duplicate webhook insert for transaction %s", req.TransactionID)
			return WebhookResult{AlreadyProcessed: true, Currency: account.Currency}, nil
		}
		return WebhookResult{}, err
	}
	if alreadyProcessed {
		return WebhookResult{AlreadyProcessed: true, PaymentID: paymentID, Currency: account.Currency}, nil
	}
	s.hub.BroadcastPayment(req.UserID, websocket.PaymentUpdate{
		AccountID:     req.AccountID,
		Balance:       money.FormatMinor(newBalance),
		Currency:      account.Currency,
		TransactionID: req.TransactionID,
	})
	return WebhookResult{PaymentID: paymentID, NewBalance: newBalance, Currency: account.Currency}, nil
}

var maxWebhookAmount = decimal.New(1, 12)

func parseWebhookAmount(raw string) (int64, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return 0, ErrInvalidAmount
	}
	if !amount.IsPositive() || amount.GreaterThan(maxWebhookAmount) {
		return 0, ErrInvalidAmount
	}
	return amount.Shift(2).IntPart(), nil
}

func stringPtr(value string) *string {
	return &value
}
