package store

import (
	"context"

	"payments/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Getter, email, passwordHash, fullName string) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, email, passwordHash, fullName)
	return id, err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT id, email, password_hash, full_name, created_at, updated_at FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":            row.ID,
		"email":         row.Email,
		"password_hash": row.PasswordHash,
		"full_name":     row.FullName,
		"created_at":    row.CreatedAt,
		"updated_at":    row.UpdatedAt,
	}, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (map[string]any, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT id, email, full_name, created_at, updated_at FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":         row.ID,
		"email":      row.Email,
		"full_name":  row.FullName,
		"created_at": row.CreatedAt,
		"updated_at": row.UpdatedAt,
	}, nil
}

func (s *UserStore) List(ctx context.Context) ([]map[string]any, error) {
	var rows []models.User
	err := s.db.SelectContext(ctx, &rows, `SELECT id, email, full_name, created_at, updated_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	users := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		users = append(users, map[string]any{
			"id":         row.ID,
			"email":      row.Email,
			"full_name":  row.FullName,
			"created_at": row.CreatedAt,
			"updated_at": row.UpdatedAt,
		})
	}
	return users, nil
}

// Update applies only the non-nil fields. Returns the number of rows touched
// so callers can distinguish a missing user.
func (s *UserStore) Update(ctx context.Context, tx Execer, userID int64, email, passwordHash, fullName *string) (int64, error) {
	query := `UPDATE users SET updated_at = NOW()`
	args := []any{}
	param := 1
	if email != nil {
		query += `, email = $` + itoa(param)
		args = append(args, *email)
		param++
	}
	if passwordHash != nil {
		query += `, password_hash = $` + itoa(param)
		args = append(args, *passwordHash)
		param++
	}
	if fullName != nil {
		query += `, full_name = $` + itoa(param)
		args = append(args, *fullName)
		param++
	}
	query += ` WHERE id = $` + itoa(param)
	args = append(args, userID)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *UserStore) Delete(ctx context.Context, tx Execer, userID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
