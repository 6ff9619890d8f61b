package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chattyhq/export-service/internal/domain"
	"github.com/chattyhq/export-service/internal/ports"
)

// ExportTokenIssuer implements RS256 signing/parsing for export tokens.
// Keys are held at adapter level so the application layer stays
// crypto-library agnostic.
type ExportTokenIssuer struct {
	kid        string
	lifetime   time.Duration
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	nowFn      func() time.Time
}

// NewExportTokenIssuer builds an issuer from configured PEM keys.
func NewExportTokenIssuer(kid string, lifetime time.Duration, privateKeyPEM, publicKeyPEM string) (*ExportTokenIssuer, error) {
	if kid == "" {
		return nil, errors.New("jwt key id (kid) is required")
	}
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, errors.New("jwt private/public keys are required")
	}

	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &ExportTokenIssuer{
		kid:        kid,
		lifetime:   lifetime,
		privateKey: priv,
		publicKey:  pub,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewEphemeralTokenIssuer creates an in-memory keypair for local/dev use.
// This exists to unblock runtime startup when static keys are intentionally
// absent. Tokens do not survive a restart of the process.
func NewEphemeralTokenIssuer(kid string, lifetime time.Duration) (*ExportTokenIssuer, error) {
	if kid == "" {
		kid = "ephemeral-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &ExportTokenIssuer{
		kid:        kid,
		lifetime:   lifetime,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}, nil
}

type exportJWTClaims struct {
	OwnerID string `json:"owner_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func (s *ExportTokenIssuer) Issue(ownerID string) (string, error) {
	now := s.nowFn()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, exportJWTClaims{
		OwnerID: ownerID,
		Purpose: domain.ExportPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	})
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

func (s *ExportTokenIssuer) Validate(raw string) (ports.ExportClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &exportJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithLeeway(30*time.Second), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.ExportClaims{}, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return ports.ExportClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*exportJWTClaims)
	if !ok || !parsed.Valid {
		return ports.ExportClaims{}, domain.ErrInvalidToken
	}
	// exp presence is enforced by the parser; iat is ours to check. A signed
	// token missing either is not one this service minted.
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return ports.ExportClaims{}, domain.ErrInvalidToken
	}
	if claims.Purpose != domain.ExportPurpose {
		return ports.ExportClaims{}, domain.ErrWrongPurpose
	}

	kid, _ := parsed.Header["kid"].(string)

	return ports.ExportClaims{
		OwnerID:   claims.OwnerID,
		Purpose:   claims.Purpose,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		KeyID:     kid,
	}, nil
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
