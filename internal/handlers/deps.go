package handlers

import (
	"context"

	"payments/internal/models"
	"payments/internal/services"
	"payments/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Getter, email, passwordHash, fullName string) (int64, error)
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
	GetByID(ctx context.Context, userID int64) (map[string]any, error)
	List(ctx context.Context) ([]map[string]any, error)
	Update(ctx context.Context, tx store.Execer, userID int64, email, passwordHash, fullName *string) (int64, error)
	Delete(ctx context.Context, tx store.Execer, userID int64) (int64, error)
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Getter, userID int64, currency string, balance int64) (models.Account, error)
	GetByID(ctx context.Context, accountID int64) (models.Account, error)
	GetByUser(ctx context.Context, userID int64) ([]models.Account, error)
}

type PaymentStore interface {
	Insert(ctx context.Context, tx store.Getter, input store.PaymentInput) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]map[string]any, error)
}

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
	GetByID(ctx context.Context, adminID int64) (map[string]any, error)
	Exists(ctx context.Context, adminID int64) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorType string, actorID *int64, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type PaymentService interface {
	ProcessWebhook(ctx context.Context, req services.WebhookRequest) (services.WebhookResult, error)
}
