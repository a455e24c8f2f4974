package store

import (
	"context"
	"fmt"

	"payments/internal/models"
)

type PaymentStore struct {
	db DB
}

type PaymentInput struct {
	TransactionID string
	AccountID     int64
	UserID        int64
	Amount        int64
	Status        string
	Description   *string
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// Insert writes one ledger row. The UNIQUE constraint on transaction_id is
// the idempotency guard; a duplicate insert fails with pq code 23505.
func (s *PaymentStore) Insert(ctx context.Context, tx Getter, input PaymentInput) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO payments (transaction_id, account_id, user_id, amount, status, description, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $5 = 'applied' THEN NOW() END)
		RETURNING id
	`, input.TransactionID, input.AccountID, input.UserID, input.Amount, input.Status, input.Description)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetByTransactionID reads through the supplied Getter so the duplicate check
// can run inside the crediting transaction.
func (s *PaymentStore) GetByTransactionID(ctx context.Context, q Getter, transactionID string) (models.Payment, error) {
	var row models.Payment
	err := q.GetContext(ctx, &row, `
		SELECT id, transaction_id, account_id, user_id, amount, status, description, created_at, applied_at
		FROM payments
		WHERE transaction_id = $1
	`, transactionID)
	if err != nil {
		return models.Payment{}, err
	}
	return row, nil
}

func (s *PaymentStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]map[string]any, error) {
	var rows []models.Payment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, transaction_id, account_id, user_id, amount, status, description, created_at, applied_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return paymentRowsToMaps(rows), nil
}

func paymentRowsToMaps(rows []models.Payment) []map[string]any {
	maps := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		maps = append(maps, map[string]any{
			"id":             row.ID,
			"transaction_id": row.TransactionID,
			"account_id":     row.AccountID,
			"user_id":        row.UserID,
			"amount":         row.Amount,
			"status":         row.Status,
			"description":    derefStringPtr(row.Description),
			"created_at":     row.CreatedAt,
			"applied_at":     row.AppliedAt,
		})
	}
	return maps
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}

func derefStringPtr(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
