package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payments/internal/auth"
	"payments/internal/config"
	"payments/internal/db"
	"payments/internal/middleware"
	"payments/internal/models"
	"payments/internal/services"
	"payments/internal/store"
	"payments/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubReconcileDB struct {
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
}

func (s stubReconcileDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.selectFn == nil {
		return nil
	}
	return s.selectFn(ctx, dest, query, args...)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Getter, email, passwordHash, fullName string) (int64, error)
	getByEmailFn func(ctx context.Context, email string) (map[string]any, error)
	getByIDFn    func(ctx context.Context, userID int64) (map[string]any, error)
	listFn       func(ctx context.Context) ([]map[string]any, error)
	updateFn     func(ctx context.Context, tx store.Execer, userID int64, email, passwordHash, fullName *string) (int64, error)
	deleteFn     func(ctx context.Context, tx store.Execer, userID int64) (int64, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Getter, email, passwordHash, fullName string) (int64, error) {
	if s.createFn == nil {
		return 1, nil
	}
	return s.createFn(ctx, tx, email, passwordHash, fullName)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID int64) (map[string]any, error) {
	if s.getByIDFn == nil {
		return nil, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) List(ctx context.Context) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubUserStore) Update(ctx context.Context, tx store.Execer, userID int64, email, passwordHash, fullName *string) (int64, error) {
	if s.updateFn == nil {
		return 1, nil
	}
	return s.updateFn(ctx, tx, userID, email, passwordHash, fullName)
}

func (s stubUserStore) Delete(ctx context.Context, tx store.Execer, userID int64) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, tx, userID)
}

type stubAccountStore struct {
	createFn    func(ctx context.Context, tx store.Getter, userID int64, currency string, balance int64) (models.Account, error)
	getByIDFn   func(ctx context.Context, accountID int64) (models.Account, error)
	getByUserFn func(ctx context.Context, userID int64) ([]models.Account, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Getter, userID int64, currency string, balance int64) (models.Account, error) {
	if s.createFn == nil {
		return models.Account{ID: 1, UserID: userID, Currency: currency, Balance: balance}, nil
	}
	return s.createFn(ctx, tx, userID, currency, balance)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID int64) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{}, nil
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) GetByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	if s.getByUserFn == nil {
		return nil, nil
	}
	return s.getByUserFn(ctx, userID)
}

type stubPaymentStore struct {
	insertFn     func(ctx context.Context, tx store.Getter, input store.PaymentInput) (int64, error)
	listByUserFn func(ctx context.Context, userID int64, limit, offset int) ([]map[string]any, error)
}

func (s stubPaymentStore) Insert(ctx context.Context, tx store.Getter, input store.PaymentInput) (int64, error) {
	if s.insertFn == nil {
		return 1, nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s stubPaymentStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]map[string]any, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

type stubAdminStore struct {
	getByEmailFn func(ctx context.Context, email string) (map[string]any, error)
	getByIDFn    func(ctx context.Context, adminID int64) (map[string]any, error)
	existsFn     func(ctx context.Context, adminID int64) (bool, error)
}

func (s stubAdminStore) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubAdminStore) GetByID(ctx context.Context, adminID int64) (map[string]any, error) {
	if s.getByIDFn == nil {
		return nil, nil
	}
	return s.getByIDFn(ctx, adminID)
}

func (s stubAdminStore) Exists(ctx context.Context, adminID int64) (bool, error) {
	if s.existsFn == nil {
		return true, nil
	}
	return s.existsFn(ctx, adminID)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorType string, actorID *int64, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorType string, actorID *int64, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorType, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubService struct {
	processFn func(ctx context.Context, req services.WebhookRequest) (services.WebhookResult, error)
}

func (s stubService) ProcessWebhook(ctx context.Context, req services.WebhookRequest) (services.WebhookResult, error) {
	if s.processFn == nil {
		return services.WebhookResult{}, nil
	}
	return s.processFn(ctx, req)
}

func newTestHandler(reconcileDB store.Selecter, txRunner db.TxRunner, users UserStore, accounts AccountStore, payments PaymentStore, admins AdminStore, audit AuditStore, service PaymentService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		DatabaseURL:    "",
		JWTSecret:      "secret",
		TokenTTL:       time.Hour,
		WebhookSecret:  "test-webhook-secret",
		AllowedOrigins: "*",
	}
	return New(reconcileDB, txRunner, cfg, users, accounts, payments, admins, audit, service, websocket.NewHub())
}

func serveWithAuth(t *testing.T, handler http.HandlerFunc, userID int64, userType string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken("secret", userID, userType, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	middleware.Auth("secret")(handler).ServeHTTP(rr, req)
	return rr
}
