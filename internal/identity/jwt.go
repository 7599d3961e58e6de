package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the JWT payload issued and verified by JWTVerifier.
type TokenClaims struct {
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	ProviderTag string   `json:"provider,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies Ed25519-signed bearer tokens. The signing key is
// derived deterministically from a master secret, following the teacher's
// NewJWTManager.
type JWTVerifier struct {
	publicKey ed25519.PublicKey
}

// NewJWTVerifier derives the verification key from masterSecret.
func NewJWTVerifier(masterSecret string) *JWTVerifier {
	seed := sha256.Sum256([]byte(masterSecret))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return &JWTVerifier{publicKey: priv.Public().(ed25519.PublicKey)}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &VerifyError{Kind: ErrorKindMissing}
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.publicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, &VerifyError{Kind: ErrorKindExpired, Cause: err}
		}
		return Identity{}, &VerifyError{Kind: ErrorKindInvalid, Cause: err}
	}
	if !parsed.Valid {
		return Identity{}, &VerifyError{Kind: ErrorKindInvalid}
	}

	return Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		ProviderTag: claims.ProviderTag,
		Roles:       claims.Roles,
	}, nil
}

// issueTokenWithKey mints a token for tests and dev tooling; production tokens are
// issued by the external identity provider, not by this server.
func (v *JWTVerifier) issueTokenWithKey(priv ed25519.PrivateKey, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		DisplayName: id.DisplayName,
		Email:       id.Email,
		ProviderTag: id.ProviderTag,
		Roles:       id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "pairhub",
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return tok.SignedString(priv)
}

// NewTestIssuer returns a token-issuing func sharing the same derived key as
// a JWTVerifier constructed from the same masterSecret, for use in tests.
func NewTestIssuer(masterSecret string) func(Identity, time.Duration) (string, error) {
	seed := sha256.Sum256([]byte(masterSecret))
	priv := ed25519.NewKeyFromSeed(seed[:])
	v := &JWTVerifier{publicKey: priv.Public().(ed25519.PublicKey)}
	return func(id Identity, ttl time.Duration) (string, error) {
		return v.issueTokenWithKey(priv, id, ttl)
	}
}
