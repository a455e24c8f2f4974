package main

import (
	"database/sql"
	"fmt"
	"log"

	"payments/internal/auth"
	"payments/internal/config"
	"payments/internal/db"

	"github.com/jmoiron/sqlx"
)

const (
	seedUserEmail    = "user@test.com"
	seedUserPassword = "testpassword"

	seedAdminEmail    = "admin@test.com"
	seedAdminPassword = "adminpassword"

	// 1000.00 in minor units. The opening ledger row below carries the
	// same amount so reconciliation reports a zero difference.
	seedBalance       = 100000
	seedTransactionID = "seed-opening-balance"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	userID, err := ensureUser(database)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	if err := ensureAdmin(database); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	if err := ensureAccount(database, userID); err != nil {
		log.Fatalf("failed to seed account: %v", err)
	}
}

func ensureUser(database *sqlx.DB) (int64, error) {
	var id int64
	err := database.Get(&id, `SELECT id FROM users WHERE email = $1`, seedUserEmail)
	if err == nil {
		fmt.Printf("user %s already present (id %d)\n", seedUserEmail, id)
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	hash, err := auth.HashPassword(seedUserPassword)
	if err != nil {
		return 0, err
	}
	err = database.Get(&id, `
		INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id`,
		seedUserEmail, hash, "Test User")
	if err != nil {
		return 0, err
	}
	fmt.Printf("created user %s (id %d)\n", seedUserEmail, id)
	return id, nil
}

func ensureAdmin(database *sqlx.DB) error {
	var id int64
	err := database.Get(&id, `SELECT id FROM admins WHERE email = $1`, seedAdminEmail)
	if err == nil {
		fmt.Printf("admin %s already present (id %d)\n", seedAdminEmail, id)
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}
	hash, err := auth.HashPassword(seedAdminPassword)
	if err != nil {
		return err
	}
	err = database.Get(&id, `
		INSERT INTO admins (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id`,
		seedAdminEmail, hash, "Test Admin")
	if err != nil {
		return err
	}
	fmt.Printf("created admin %s (id %d)\n", seedAdminEmail, id)
	return nil
}

func ensureAccount(database *sqlx.DB, userID int64) error {
	var accountID int64
	err := database.Get(&accountID, `SELECT id FROM accounts WHERE user_id = $1 ORDER BY id LIMIT 1`, userID)
	if err == nil {
		fmt.Printf("account for user %d already present (id %d)\n", userID, accountID)
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	tx, err := database.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.Get(&accountID, `
		INSERT INTO accounts (user_id, balance, currency)
		VALUES ($1, $2, 'RUB')
		RETURNING id`,
		userID, seedBalance)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO payments (transaction_id, account_id, user_id, amount, status, description, applied_at)
		VALUES ($1, $2, $3, $4, 'applied', 'Opening balance', NOW())`,
		seedTransactionID, accountID, userID, seedBalance)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	fmt.Printf("created account %d with opening balance for user %d\n", accountID, userID)
	return nil
}
