package handlers

import (
	"encoding/json"
	"net/http"

	"payments/internal/money"
	"payments/internal/services"
)

type webhookRequest struct {
	TransactionID string `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	AccountID     int64  `json:"account_id"`
	// Amount keeps the raw token so the signature is checked over the exact
	// bytes the provider signed.
	Amount    json.RawMessage `json:"amount"`
	Signature string          `json:"signature"`
}

// PaymentWebhook handles deposit notifications from the payment provider.
// The endpoint carries no JWT: the request signature is the authentication.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.TransactionID == "" {
		respondError(w, http.StatusBadRequest, "transaction_id is required")
		return
	}
	if req.UserID <= 0 {
		respondError(w, http.StatusBadRequest, "user_id must be a positive integer")
		return
	}
	if req.AccountID <= 0 {
		respondError(w, http.StatusBadRequest, "account_id must be a positive integer")
		return
	}
	if len(req.Amount) == 0 {
		respondError(w, http.StatusBadRequest, "amount is required")
		return
	}
	amount, err := rawAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "amount must be a number")
		return
	}
	if req.Signature == "" {
		respondError(w, http.StatusBadRequest, "signature is required")
		return
	}

	result, err := h.service.ProcessWebhook(r.Context(), services.WebhookRequest{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		AccountID:     req.AccountID,
		Amount:        amount,
		Signature:     req.Signature,
	})
	if err != nil {
		switch err {
		case services.ErrInvalidSignature:
			webhookSignatureFailures.Inc()
			webhookDeliveries.WithLabelValues("invalid_signature").Inc()
			respondError(w, http.StatusUnauthorized, "invalid signature")
		case services.ErrInvalidAmount:
			webhookDeliveries.WithLabelValues("invalid_amount").Inc()
			respondError(w, http.StatusBadRequest, "amount must be a positive number with at most two decimal places")
		case services.ErrUserNotFound:
			webhookDeliveries.WithLabelValues("user_not_found").Inc()
			respondError(w, http.StatusNotFound, "user not found")
		case services.ErrAccountNotFound:
			webhookDeliveries.WithLabelValues("account_not_found").Inc()
			respondError(w, http.StatusNotFound, "account not found")
		case services.ErrAccountMismatch:
			webhookDeliveries.WithLabelValues("account_mismatch").Inc()
			respondError(w, http.StatusBadRequest, "account does not belong to user")
		default:
			webhookDeliveries.WithLabelValues("storage_error").Inc()
			respondError(w, http.StatusInternalServerError, "payment processing failed")
		}
		return
	}
	if result.AlreadyProcessed {
		webhookDeliveries.WithLabelValues("already_processed").Inc()
		respondJSON(w, http.StatusOK, map[string]any{
			"status":         "already_processed",
			"transaction_id": req.TransactionID,
		})
		return
	}
	webhookDeliveries.WithLabelValues("processed").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "processed",
		"transaction_id": req.TransactionID,
		"balance":        money.FormatMinor(result.NewBalance),
	})
}

// rawAmount validates that the amount field held a bare JSON number and
// returns its exact lexical form. Quoted strings are rejected: the contract
// says number, and coercing would change the signed bytes.
func rawAmount(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errInvalidAmount
	}
	if raw[0] == '"' {
		return "", errInvalidAmount
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", errInvalidAmount
	}
	if number == "" {
		return "", errInvalidAmount
	}
	return number.String(), nil
}
