package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payments/internal/auth"
	"payments/internal/middleware"
	"payments/internal/models"
)

func TestMe(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		getByIDFn: func(_ context.Context, userID int64) (map[string]any, error) {
			if userID != 7 {
				t.Fatalf("unexpected user id: %d", userID)
			}
			return map[string]any{"id": int64(7), "email": "user@test.com", "full_name": "Test User"}, nil
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	rr := serveWithAuth(t, handler.Me, 7, auth.UserTypeUser)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["email"] != "user@test.com" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestMeMissingUser(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		getByIDFn: func(context.Context, int64) (map[string]any, error) {
			return nil, sql.ErrNoRows
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	rr := serveWithAuth(t, handler.Me, 7, auth.UserTypeUser)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMeNoToken(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.Me)).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMyAccounts(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{
		getByUserFn: func(_ context.Context, userID int64) ([]models.Account, error) {
			if userID != 7 {
				t.Fatalf("unexpected user id: %d", userID)
			}
			return []models.Account{
				{ID: 3, UserID: 7, AccountNumber: "ACC1000000003", Balance: 100000, Currency: "RUB"},
			}, nil
		},
	}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	rr := serveWithAuth(t, handler.MyAccounts, 7, auth.UserTypeUser)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Accounts []map[string]any `json:"accounts"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(payload.Accounts))
	}
	account := payload.Accounts[0]
	if account["account_number"] != "ACC1000000003" || account["balance"] != "1000.00" || account["currency"] != "RUB" {
		t.Fatalf("unexpected account payload: %#v", account)
	}
}

func TestMyPayments(t *testing.T) {
	var gotLimit, gotOffset int
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{
		listByUserFn: func(_ context.Context, userID int64, limit, offset int) ([]map[string]any, error) {
			gotLimit, gotOffset = limit, offset
			return []map[string]any{
				{
					"id":             int64(42),
					"transaction_id": "tx-1",
					"account_id":     int64(3),
					"amount":         int64(10050),
					"status":         "applied",
					"description":    "Webhook deposit",
				},
			}, nil
		},
	}, stubAdminStore{}, stubAuditStore{}, stubService{})

	token, err := auth.GenerateToken("secret", 7, auth.UserTypeUser, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/payments?limit=10&page=3", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.MyPayments)).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != 10 || gotOffset != 20 {
		t.Fatalf("expected limit 10 offset 20, got %d %d", gotLimit, gotOffset)
	}
	var payload struct {
		Payments []map[string]any `json:"payments"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payload.Payments))
	}
	row := payload.Payments[0]
	if row["transaction_id"] != "tx-1" || row["amount"] != "100.50" || row["status"] != "applied" {
		t.Fatalf("unexpected payment payload: %#v", row)
	}
}
