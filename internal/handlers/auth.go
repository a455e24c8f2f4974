package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"payments/internal/auth"
	"payments/internal/money"

	"github.com/jmoiron/sqlx"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(valueToString(user["password_hash"]), req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	userID := money.ValueToInt64(user["id"])
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		data, _ := json.Marshal(map[string]string{
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
		return h.audit.Log(r.Context(), tx, auth.UserTypeUser, &userID, "login", "user", valueToString(user["id"]), string(data))
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, auth.UserTypeUser, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user":  userPayload(user),
		"token": tokenPayload(token, h.cfg.TokenTTL),
	})
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	admin, err := h.admins.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(valueToString(admin["password_hash"]), req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	adminID := money.ValueToInt64(admin["id"])
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		data, _ := json.Marshal(map[string]string{
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
		return h.audit.Log(r.Context(), tx, auth.UserTypeAdmin, &adminID, "login", "admin", valueToString(admin["id"]), string(data))
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, adminID, auth.UserTypeAdmin, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user":  userPayload(admin),
		"token": tokenPayload(token, h.cfg.TokenTTL),
	})
}

func userPayload(user map[string]any) map[string]any {
	return map[string]any{
		"id":         money.ValueToInt64(user["id"]),
		"email":      valueToString(user["email"]),
		"full_name":  valueToString(user["full_name"]),
		"created_at": user["created_at"],
		"updated_at": user["updated_at"],
	}
}

func tokenPayload(token string, ttl time.Duration) map[string]any {
	return map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(ttl.Seconds()),
	}
}
