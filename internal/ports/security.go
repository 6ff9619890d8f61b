package ports

import "time"

// ExportClaims is the validated payload of an export token.
type ExportClaims struct {
	OwnerID   string    `json:"owner_id"`
	Purpose   string    `json:"purpose"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	KeyID     string    `json:"kid"`
}

// TokenIssuer mints and validates signed, purpose-scoped, time-limited claims.
// Validate distinguishes signature problems (domain.ErrInvalidToken), expiry
// (domain.ErrTokenExpired) and purpose mismatch (domain.ErrWrongPurpose).
type TokenIssuer interface {
	Issue(ownerID string) (string, error)
	Validate(token string) (ExportClaims, error)
}
