package authserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jmcleod/fitx/identity"
)

const tokenIssuerName = "fitx-authserver"

// claims is the JWT body of an issued token.
type claims struct {
	Role identity.Role `json:"role"`
	jwt.RegisteredClaims
}

// tokenIssuer signs HS256 tokens and tracks revoked token IDs until they
// would have expired anyway.
type tokenIssuer struct {
	key []byte
	ttl time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time
}

func newTokenIssuer(key []byte, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{
		key:     key,
		ttl:     ttl,
		revoked: make(map[string]time.Time),
	}
}

func (ti *tokenIssuer) issue(u User) (string, error) {
	now := time.Now()
	c := claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    tokenIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// parse validates signature, expiry and revocation.
func (ti *tokenIssuer) parse(raw string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return ti.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuerName),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}
	ti.mu.Lock()
	_, revoked := ti.revoked[c.ID]
	ti.mu.Unlock()
	if revoked {
		return nil, ErrTokenRevoked
	}
	return &c, nil
}

func (ti *tokenIssuer) revoke(c *claims) {
	exp := time.Now().Add(ti.ttl)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.revoked[c.ID] = exp
}

func (ti *tokenIssuer) sweep() {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	now := time.Now()
	for id, exp := range ti.revoked {
		if now.After(exp) {
			delete(ti.revoked, id)
		}
	}
}
