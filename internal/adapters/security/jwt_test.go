package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chattyhq/export-service/internal/domain"
)

func newTestIssuer(t *testing.T) *ExportTokenIssuer {
	t.Helper()
	issuer, err := NewEphemeralTokenIssuer("test-key-1", time.Hour)
	if err != nil {
		t.Fatalf("create issuer: %v", err)
	}
	return issuer
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	raw, err := issuer.Issue("owner-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Validate(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.OwnerID != "owner-1" || claims.Purpose != domain.ExportPurpose {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.KeyID != "test-key-1" {
		t.Fatalf("kid not carried through: %+v", claims)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Fatalf("expiry must follow issuance: %+v", claims)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)
	issuer.nowFn = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }

	raw, err := issuer.Issue("owner-2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Validate(raw); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateRejectsWrongPurpose(t *testing.T) {
	issuer := newTestIssuer(t)

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, exportJWTClaims{
		OwnerID: "owner-3",
		Purpose: "login",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	token.Header["kid"] = "test-key-1"
	raw, err := token.SignedString(issuer.privateKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := issuer.Validate(raw); !errors.Is(err, domain.ErrWrongPurpose) {
		t.Fatalf("expected ErrWrongPurpose, got %v", err)
	}
}

func TestValidateRejectsMissingTimestampClaims(t *testing.T) {
	issuer := newTestIssuer(t)

	// Correctly signed tokens without exp or iat must be rejected, not panic
	// on the nil registered-claim fields.
	noExp := jwt.NewWithClaims(jwt.SigningMethodRS256, exportJWTClaims{
		OwnerID: "owner-5",
		Purpose: domain.ExportPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	})
	raw, err := noExp.SignedString(issuer.privateKey)
	if err != nil {
		t.Fatalf("sign token without exp: %v", err)
	}
	if _, err := issuer.Validate(raw); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("missing exp: expected ErrInvalidToken, got %v", err)
	}

	noIat := jwt.NewWithClaims(jwt.SigningMethodRS256, exportJWTClaims{
		OwnerID: "owner-5",
		Purpose: domain.ExportPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(time.Hour)),
		},
	})
	raw, err = noIat.SignedString(issuer.privateKey)
	if err != nil {
		t.Fatalf("sign token without iat: %v", err)
	}
	if _, err := issuer.Validate(raw); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("missing iat: expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	other := newTestIssuer(t)

	raw, err := other.Issue("owner-4")
	if err != nil {
		t.Fatalf("issue with foreign key: %v", err)
	}
	if _, err := issuer.Validate(raw); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := issuer.Validate("not-a-jwt"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("garbage input: expected ErrInvalidToken, got %v", err)
	}
}
