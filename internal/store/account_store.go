package store

import (
	"context"

	"payments/internal/models"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Getter, userID int64, currency string, balance int64) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		INSERT INTO accounts (user_id, currency, balance)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, account_number, balance, currency, created_at, updated_at
	`, userID, currency, balance)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID int64) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, account_number, balance, currency, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, account_number, balance, currency, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Credit adds amount to the account balance in one statement and returns the
// new balance. The WHERE clause carries the ownership check: zero rows means
// the account does not exist or belongs to a different user, surfaced as
// sql.ErrNoRows by the RETURNING scan.
func (s *AccountStore) Credit(ctx context.Context, tx Getter, accountID, userID, amount int64) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING balance
	`, amount, accountID, userID)
	if err != nil {
		return 0, err
	}
	return balance, nil
}
