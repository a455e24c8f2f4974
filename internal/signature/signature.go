// Package signature implements the shared-secret scheme used by the payment
// provider to sign webhook deliveries.
//
// The signed string is the concatenation, without delimiters, of
// account_id, amount, transaction_id, user_id and the secret, in that exact
// order. The digest is lowercase hex SHA-256. The amount participates exactly
// as it appeared on the wire: "100" and "100.00" sign differently. The
// concatenation has no field boundaries, so distinct tuples can produce the
// same preimage; the provider's scheme is what it is, and both sides must
// compute it identically.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Compute returns the expected hex digest for the given webhook fields.
func (v *Verifier) Compute(accountID int64, amount, transactionID string, userID int64) string {
	payload := fmt.Sprintf("%d%s%s%d%s", accountID, amount, transactionID, userID, v.secret)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether provided matches the expected digest. The comparison
// is constant-time and case-sensitive.
func (v *Verifier) Verify(accountID int64, amount, transactionID string, userID int64, provided string) bool {
	expected := v.Compute(accountID, amount, transactionID, userID)
	return hmac.Equal([]byte(expected), []byte(provided))
}
