// Package auth validates API keys and mints the short-lived bearer tokens
// accepted by the HTTP layer.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
)

// TokenIssuer is the iss claim stamped on minted tokens.
const TokenIssuer = "clienthub-api"

// TokenClaims are the claims carried by a minted bearer token.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// Authenticator checks presented API keys against the configured set and
// mints and verifies the HS256 tokens handed out by the token exchange.
type Authenticator struct {
	keyDigests [][]byte
	signingKey []byte
	tokenTTL   time.Duration
}

// NewAuthenticator builds an authenticator from the accepted API keys and the
// derived signing key. Keys are held as SHA-256 digests only.
func NewAuthenticator(apiKeys []string, signingKey []byte, tokenTTL time.Duration) *Authenticator {
	digests := make([][]byte, 0, len(apiKeys))
	for _, key := range apiKeys {
		if key == "" {
			continue
		}
		sum := sha256.Sum256([]byte(key))
		digests = append(digests, sum[:])
	}
	return &Authenticator{
		keyDigests: digests,
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
	}
}

// ValidateAPIKey reports whether the presented key matches a configured key.
// Every digest is compared in constant time regardless of where a match sits.
func (a *Authenticator) ValidateAPIKey(key string) error {
	if key == "" || len(a.keyDigests) == 0 {
		return ErrInvalidAPIKey
	}
	sum := sha256.Sum256([]byte(key))
	matched := 0
	for _, digest := range a.keyDigests {
		matched |= subtle.ConstantTimeCompare(sum[:], digest)
	}
	if matched != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// Fingerprint returns a short stable identifier for an API key, safe to log
// and used as the subject of minted tokens.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:])[:12]
}

// MintToken issues an HS256 bearer token for the given subject and returns
// the signed token together with its expiry.
func (a *Authenticator) MintToken(subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(a.tokenTTL)
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken checks a bearer token's signature and expiry and returns its
// claims.
func (a *Authenticator) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != TokenIssuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidToken)
	}
	return claims, nil
}

// TokenTTL returns the lifetime applied to minted tokens.
func (a *Authenticator) TokenTTL() time.Duration {
	return a.tokenTTL
}
