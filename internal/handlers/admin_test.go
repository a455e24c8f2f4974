package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payments/internal/auth"
	"payments/internal/middleware"
	"payments/internal/models"
	"payments/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
)

func adminRequest(t *testing.T, method, target string, body []byte, userID int64) *http.Request {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	token, err := auth.GenerateToken("secret", userID, auth.UserTypeAdmin, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestAdminMe(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{
		getByIDFn: func(_ context.Context, adminID int64) (map[string]any, error) {
			if adminID != 2 {
				t.Fatalf("unexpected admin id: %d", adminID)
			}
			return map[string]any{"id": int64(2), "email": "admin@test.com", "full_name": "Test Admin"}, nil
		},
	}, stubAuditStore{}, stubService{})

	rr := serveWithAuth(t, handler.AdminMe, 2, auth.UserTypeAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["email"] != "admin@test.com" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestAdminRoutesRejectUserToken(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	token, err := auth.GenerateToken("secret", 7, auth.UserTypeUser, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	chain := middleware.Auth("secret")(middleware.RequireAdmin(stubAdminStore{})(http.HandlerFunc(handler.AdminMe)))
	chain.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCreateUserSuccess(t *testing.T) {
	var createdHash string
	var loggedAction string
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		createFn: func(_ context.Context, _ store.Getter, email, passwordHash, fullName string) (int64, error) {
			if email != "new@test.com" || fullName != "New User" {
				t.Fatalf("unexpected create args: %s %s", email, fullName)
			}
			createdHash = passwordHash
			return 9, nil
		},
		getByIDFn: func(_ context.Context, userID int64) (map[string]any, error) {
			return map[string]any{"id": userID, "email": "new@test.com", "full_name": "New User"}, nil
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{
		logFn: func(_ context.Context, _ store.Execer, _ string, actorID *int64, action, _, _, _ string) error {
			loggedAction = action
			if actorID == nil || *actorID != 2 {
				t.Fatalf("unexpected actor id: %v", actorID)
			}
			return nil
		},
	}, stubService{})

	body := []byte(`{"email":"new@test.com","password":"pass1234","full_name":"New User"}`)
	req := adminRequest(t, http.MethodPost, "/api/v1/admin/users", body, 2)
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.CreateUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if !auth.CheckPassword(createdHash, "pass1234") {
		t.Fatal("stored hash does not match the password")
	}
	if loggedAction != "create_user" {
		t.Fatalf("expected create_user audit entry, got %q", loggedAction)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["email"] != "new@test.com" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		createFn: func(context.Context, store.Getter, string, string, string) (int64, error) {
			return 0, &pq.Error{Code: "23505"}
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	body := []byte(`{"email":"dup@test.com","password":"pass1234","full_name":"Dup User"}`)
	req := adminRequest(t, http.MethodPost, "/api/v1/admin/users", body, 2)
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.CreateUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestCreateUserValidation(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		createFn: func(context.Context, store.Getter, string, string, string) (int64, error) {
			t.Error("create should not run for invalid input")
			return 0, nil
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	cases := []string{
		`{"email":"not-an-email","password":"pass1234","full_name":"Name"}`,
		`{"email":"ok@test.com","password":"short","full_name":"Name"}`,
		`{"email":"ok@test.com","password":"pass1234","full_name":" "}`,
	}
	for _, body := range cases {
		req := adminRequest(t, http.MethodPost, "/api/v1/admin/users", []byte(body), 2)
		rr := httptest.NewRecorder()
		middleware.Auth("secret")(http.HandlerFunc(handler.CreateUser)).ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestListUsers(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		listFn: func(context.Context) ([]map[string]any, error) {
			return []map[string]any{
				{"id": int64(1), "email": "a@test.com", "full_name": "A"},
				{"id": int64(2), "email": "b@test.com", "full_name": "B"},
			}, nil
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	rr := serveWithAuth(t, handler.ListUsers, 2, auth.UserTypeAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Users []map[string]any `json:"users"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(payload.Users))
	}
}

func TestUpdateUserPartial(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		updateFn: func(_ context.Context, _ store.Execer, userID int64, email, passwordHash, fullName *string) (int64, error) {
			if userID != 7 {
				t.Fatalf("unexpected user id: %d", userID)
			}
			if email == nil || *email != "renamed@test.com" {
				t.Fatalf("expected email update, got %v", email)
			}
			if passwordHash != nil || fullName != nil {
				t.Fatal("unset fields must stay nil")
			}
			return 1, nil
		},
		getByIDFn: func(_ context.Context, userID int64) (map[string]any, error) {
			return map[string]any{"id": userID, "email": "renamed@test.com", "full_name": "Test User"}, nil
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	body := []byte(`{"email":"renamed@test.com"}`)
	req := withURLParam(adminRequest(t, http.MethodPut, "/api/v1/admin/users/7", body, 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.UpdateUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		updateFn: func(context.Context, store.Execer, int64, *string, *string, *string) (int64, error) {
			return 0, nil
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	body := []byte(`{"email":"renamed@test.com"}`)
	req := withURLParam(adminRequest(t, http.MethodPut, "/api/v1/admin/users/99", body, 2), "id", "99")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.UpdateUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestUpdateUserNothingToUpdate(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	req := withURLParam(adminRequest(t, http.MethodPut, "/api/v1/admin/users/7", []byte(`{}`), 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.UpdateUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUpdateUserInvalidID(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	req := withURLParam(adminRequest(t, http.MethodPut, "/api/v1/admin/users/abc", []byte(`{"email":"x@test.com"}`), 2), "id", "abc")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.UpdateUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestDeleteUserSuccess(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	req := withURLParam(adminRequest(t, http.MethodDelete, "/api/v1/admin/users/7", nil, 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.DeleteUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["message"] != "user deleted" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestDeleteUserStillReferenced(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		deleteFn: func(context.Context, store.Execer, int64) (int64, error) {
			return 0, &pq.Error{Code: "23503"}
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	req := withURLParam(adminRequest(t, http.MethodDelete, "/api/v1/admin/users/7", nil, 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.DeleteUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestListUserAccounts(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		getByIDFn: func(_ context.Context, userID int64) (map[string]any, error) {
			return map[string]any{"id": userID, "email": "user@test.com", "full_name": "Test User"}, nil
		},
	}, stubAccountStore{
		getByUserFn: func(context.Context, int64) ([]models.Account, error) {
			return []models.Account{{ID: 3, AccountNumber: "ACC1000000003", Balance: 100000, Currency: "RUB"}}, nil
		},
	}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	req := withURLParam(adminRequest(t, http.MethodGet, "/api/v1/admin/users/7/accounts", nil, 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.ListUserAccounts)).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		UserEmail string           `json:"user_email"`
		Accounts  []map[string]any `json:"accounts"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.UserEmail != "user@test.com" || len(payload.Accounts) != 1 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestListUserAccountsMissingUser(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		getByIDFn: func(context.Context, int64) (map[string]any, error) {
			return nil, sql.ErrNoRows
		},
	}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	req := withURLParam(adminRequest(t, http.MethodGet, "/api/v1/admin/users/99/accounts", nil, 2), "id", "99")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.ListUserAccounts)).ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreateUserAccountWithOpeningBalance(t *testing.T) {
	var opening store.PaymentInput
	openingInserts := 0
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		getByIDFn: func(_ context.Context, userID int64) (map[string]any, error) {
			return map[string]any{"id": userID}, nil
		},
	}, stubAccountStore{
		createFn: func(_ context.Context, _ store.Getter, userID int64, currency string, balance int64) (models.Account, error) {
			if currency != "RUB" || balance != 25000 {
				t.Fatalf("unexpected create args: %s %d", currency, balance)
			}
			return models.Account{ID: 3, UserID: userID, AccountNumber: "ACC1000000003", Balance: balance, Currency: currency}, nil
		},
	}, stubPaymentStore{
		insertFn: func(_ context.Context, _ store.Getter, input store.PaymentInput) (int64, error) {
			opening = input
			openingInserts++
			return 1, nil
		},
	}, stubAdminStore{}, stubAuditStore{}, stubService{})

	body := []byte(`{"currency":"rub","initial_balance":"250.00"}`)
	req := withURLParam(adminRequest(t, http.MethodPost, "/api/v1/admin/users/7/accounts", body, 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.CreateUserAccount)).ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if openingInserts != 1 {
		t.Fatalf("expected 1 opening ledger row, got %d", openingInserts)
	}
	if opening.Amount != 25000 || opening.Status != "applied" || opening.TransactionID == "" {
		t.Fatalf("unexpected opening row: %#v", opening)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["balance"] != "250.00" || payload["currency"] != "RUB" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestCreateUserAccountWithoutBalance(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{
		getByIDFn: func(_ context.Context, userID int64) (map[string]any, error) {
			return map[string]any{"id": userID}, nil
		},
	}, stubAccountStore{}, stubPaymentStore{
		insertFn: func(context.Context, store.Getter, store.PaymentInput) (int64, error) {
			t.Error("no opening row expected for a zero balance")
			return 0, nil
		},
	}, stubAdminStore{}, stubAuditStore{}, stubService{})

	body := []byte(`{}`)
	req := withURLParam(adminRequest(t, http.MethodPost, "/api/v1/admin/users/7/accounts", body, 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.CreateUserAccount)).ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateUserAccountInvalidCurrency(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	body := []byte(`{"currency":"RUBLE"}`)
	req := withURLParam(adminRequest(t, http.MethodPost, "/api/v1/admin/users/7/accounts", body, 2), "id", "7")
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(http.HandlerFunc(handler.CreateUserAccount)).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListAuditLogs(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{
		listFn: func(_ context.Context, limit, offset int) ([]map[string]any, error) {
			if limit != 50 || offset != 0 {
				t.Fatalf("unexpected paging: %d %d", limit, offset)
			}
			return []map[string]any{{"id": "log-1", "action": "login"}}, nil
		},
	}, stubService{})

	rr := serveWithAuth(t, handler.ListAuditLogs, 2, auth.UserTypeAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload) != 1 || payload[0]["action"] != "login" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestReconcile(t *testing.T) {
	queried := false
	handler := newTestHandler(stubReconcileDB{
		selectFn: func(_ context.Context, _ any, query string, _ ...any) error {
			queried = true
			if !strings.Contains(query, "LEFT JOIN payments") || !strings.Contains(query, "p.status = 'applied'") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "a.balance - COALESCE(SUM(p.amount), 0)") {
				t.Fatalf("difference column missing from query: %s", query)
			}
			return nil
		},
	}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})

	rr := serveWithAuth(t, handler.Reconcile, 2, auth.UserTypeAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !queried {
		t.Fatal("expected reconcile query to run")
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Fatalf("expected empty report, got %s", body)
	}
}

func TestWSPaymentsMissingToken(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/payments", nil)
	rr := httptest.NewRecorder()
	handler.WSPayments(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWSPaymentsInvalidToken(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/payments?token=garbage", nil)
	rr := httptest.NewRecorder()
	handler.WSPayments(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWSPaymentsRejectsAdminToken(t *testing.T) {
	handler := newTestHandler(stubReconcileDB{}, fakeTxRunner{}, stubUserStore{}, stubAccountStore{}, stubPaymentStore{}, stubAdminStore{}, stubAuditStore{}, stubService{})
	token, err := auth.GenerateToken("secret", 2, auth.UserTypeAdmin, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/payments?token="+token, nil)
	rr := httptest.NewRecorder()
	handler.WSPayments(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
