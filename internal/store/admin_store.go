package store

import (
	"context"
	"database/sql"

	"payments/internal/models"
)

type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	var row models.Admin
	err := s.db.GetContext(ctx, &row, `SELECT id, email, password_hash, full_name, created_at, updated_at FROM admins WHERE email = $1`, email)
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

func (s *AdminStore) GetByID(ctx context.Context, adminID int64) (map[string]any, error) {
	var row models.Admin
	err := s.db.GetContext(ctx, &row, `SELECT id, email, full_name, created_at, updated_at FROM admins WHERE id = $1`, adminID)
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

func (s *AdminStore) Exists(ctx context.Context, adminID int64) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM admins WHERE id = $1`, adminID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return count > 0, nil
}
