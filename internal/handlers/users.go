package handlers

import (
	"database/sql"
	"net/http"

	"payments/internal/middleware"
)

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
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
	respondJSON(w, http.StatusOK, userPayload(user))
}

func (h *Handler) MyAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
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
	respondJSON(w, http.StatusOK, map[string]any{"accounts": normalized})
}

func (h *Handler) MyPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r.URL.Query())
	payments, err := h.payments.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load payments")
		return
	}
	normalized := make([]map[string]any, 0, len(payments))
	for _, row := range payments {
		normalized = append(normalized, map[string]any{
			"id":             row["id"],
			"transaction_id": valueToString(row["transaction_id"]),
			"account_id":     row["account_id"],
			"amount":         valueToMoney(row["amount"]),
			"status":         valueToString(row["status"]),
			"description":    valueToString(row["description"]),
			"created_at":     row["created_at"],
			"applied_at":     row["applied_at"],
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"payments": normalized})
}
