package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"payments/internal/auth"
	"payments/internal/middleware"
	"payments/internal/models"
	"payments/internal/store"
	"payments/internal/validator"
	"payments/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func (h *Handler) AdminMe(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	admin, err := h.admins.GetByID(r.Context(), adminID)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "admin not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load admin")
		return
	}
	respondJSON(w, http.StatusOK, userPayload(admin))
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateFullName(req.FullName); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	var userID int64
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		var err error
		userID, err = h.users.Create(r.Context(), tx, req.Email, passwordHash, req.FullName)
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"email": req.Email})
		return h.audit.Log(r.Context(), tx, auth.UserTypeAdmin, &adminID, "create_user", "user", valueToString(userID), string(data))
	})
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to create user")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondJSON(w, http.StatusCreated, userPayload(user))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load users")
		return
	}
	normalized := make([]map[string]any, 0, len(users))
	for _, user := range users {
		normalized = append(normalized, userPayload(user))
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": normalized})
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	FullName *string `json:"full_name"`
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Email == nil && req.Password == nil && req.FullName == nil {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Email != nil {
		if err := validator.ValidateEmail(*req.Email); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Password != nil {
		if err := validator.ValidatePassword(*req.Password); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.FullName != nil {
		if err := validator.ValidateFullName(*req.FullName); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var passwordHash *string
	if req.Password != nil {
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to secure password")
			return
		}
		passwordHash = &hashed
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		updated, err := h.users.Update(r.Context(), tx, userID, req.Email, passwordHash, req.FullName)
		if err != nil {
			return err
		}
		if updated == 0 {
			return sql.ErrNoRows
		}
		data, _ := json.Marshal(map[string]any{"user_id": userID})
		return h.audit.Log(r.Context(), tx, auth.UserTypeAdmin, &adminID, "update_user", "user", valueToString(userID), string(data))
	})
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to update user")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, userPayload(user))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		deleted, err := h.users.Delete(r.Context(), tx, userID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return sql.ErrNoRows
		}
		data, _ := json.Marshal(map[string]any{"user_id": userID})
		return h.audit.Log(r.Context(), tx, auth.UserTypeAdmin, &adminID, "delete_user", "user", valueToString(userID), string(data))
	})
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23503" {
			respondError(w, http.StatusConflict, "user still has accounts or payments")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to delete user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *Handler) ListUserAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	accounts, err := h.accounts.GetByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	normalized := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		normalized = append(normalized, map[string]any{
			"id":             account.ID,
			"account_number": account.AccountNumber,
			"balance":        valueToMoney(account.Balance),
			"currency":       account.Currency,
			"created_at":     account.CreatedAt,
			"updated_at":     account.UpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":        userID,
		"user_email":     valueToString(user["email"]),
		"user_full_name": valueToString(user["full_name"]),
		"accounts":       normalized,
	})
}

type createAccountRequest struct {
	Currency       string `json:"currency"`
	InitialBalance string `json:"initial_balance"`
}

// CreateUserAccount opens an account for an existing user. Webhook deliveries
// never create accounts, so provisioning happens here.
func (h *Handler) CreateUserAccount(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "RUB"
	}
	if len(currency) != 3 {
		respondError(w, http.StatusBadRequest, "invalid currency")
		return
	}
	var balanceMinor int64
	if req.InitialBalance != "" {
		balanceMinor, err = parseAmountMinor(req.InitialBalance)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid initial balance")
			return
		}
	}
	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	var account models.Account
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		var err error
		account, err = h.accounts.Create(r.Context(), tx, userID, currency, balanceMinor)
		if err != nil {
			return err
		}
		if balanceMinor > 0 {
			if _, err := h.payments.Insert(r.Context(), tx, store.PaymentInput{
				TransactionID: uuid.NewString(),
				AccountID:     account.ID,
				UserID:        userID,
				Amount:        balanceMinor,
				Status:        "applied",
				Description:   stringPtr("Opening balance"),
			}); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]any{"account_id": account.ID, "currency": currency})
		return h.audit.Log(r.Context(), tx, auth.UserTypeAdmin, &adminID, "create_account", "account", valueToString(account.ID), string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create account")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":             account.ID,
		"user_id":        account.UserID,
		"account_number": account.AccountNumber,
		"balance":        valueToMoney(account.Balance),
		"currency":       account.Currency,
		"created_at":     account.CreatedAt,
	})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r.URL.Query())
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// Reconcile compares each stored balance against the sum of its applied
// ledger rows. Every difference should be zero.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	type reconRow struct {
		AccountID      int64  `db:"account_id"`
		AccountNumber  string `db:"account_number"`
		Currency       string `db:"currency"`
		LedgerSum      int64  `db:"ledger_sum"`
		AccountBalance int64  `db:"account_balance"`
		Difference     int64  `db:"difference"`
	}
	var rows []reconRow
	query := `
		SELECT a.id AS account_id,
		       a.account_number,
		       a.currency,
		       COALESCE(SUM(p.amount), 0) AS ledger_sum,
		       a.balance AS account_balance,
		       (a.balance - COALESCE(SUM(p.amount), 0)) AS difference
		FROM accounts a
		LEFT JOIN payments p ON p.account_id = a.id AND p.status = 'applied'
		GROUP BY a.id, a.account_number, a.currency, a.balance
		ORDER BY a.id
	`
	if err := h.reconcileDB.SelectContext(r.Context(), &rows, query); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to reconcile balances")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"account_id":      row.AccountID,
			"account_number":  row.AccountNumber,
			"currency":        row.Currency,
			"ledger_sum":      valueToMoney(row.LedgerSum),
			"account_balance": valueToMoney(row.AccountBalance),
			"difference":      valueToMoney(row.Difference),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) WSPayments(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if claims.UserType != auth.UserTypeUser {
		respondError(w, http.StatusForbidden, "user token required")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
