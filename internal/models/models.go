package models

import "time"

type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type Admin struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type Account struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	AccountNumber string     `db:"account_number" json:"account_number"`
	Balance       int64      `db:"balance" json:"balance"`
	Currency      string     `db:"currency" json:"currency"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type Payment struct {
	ID            int64      `db:"id" json:"id"`
	TransactionID string     `db:"transaction_id" json:"transaction_id"`
	AccountID     int64      `db:"account_id" json:"account_id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Amount        int64      `db:"amount" json:"amount"`
	Status        string     `db:"status" json:"status"`
	Description   *string    `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	AppliedAt     *time.Time `db:"applied_at" json:"applied_at,omitempty"`
}
