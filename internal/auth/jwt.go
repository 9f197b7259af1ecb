// Package auth verifies the JWT access tokens that gate comment writes.
//
// Tokens are issued elsewhere; this service only checks them. A token is a
// standard HMAC-signed JWT whose payload carries at least:
//
//	{"id": 42, "username": "dj_ana"}
//
// The "id" claim may be a JSON string or number. It is normalized to a
// string, which is what the comments table stores in user_id.
//
// The server can verify the signature without any DB lookup, just the secret.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for every token that fails verification:
	// bad signature, wrong algorithm, expired, malformed, or no identity.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Identity is the caller identity carried by a verified token.
type Identity struct {
	ID       string
	Username string
}

// TokenService verifies JWTs against a shared HMAC secret.
//
// The secret is handed in at construction; nothing in this package reads
// process-wide configuration.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a TokenService for the given secret.
// When issuer is non-empty, tokens must carry a matching "iss" claim.
func NewTokenService(secret, issuer string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: JWT secret must not be empty")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer}, nil
}

// claims is the JWT payload. RegisteredClaims supplies exp/nbf/iss
// handling; UserID and Username are the application claims.
type claims struct {
	UserID   flexibleID `json:"id"`
	Username string     `json:"username"`
	jwt.RegisteredClaims
}

// flexibleID accepts both "id": "abc" and "id": 42.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id claim must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

// Verify parses and verifies a JWT string and returns the identity it
// carries.
//
// Checks performed:
//   - Signature is valid for the configured secret
//   - Algorithm is one of HS256/HS384/HS512 (blocks "none" and RS/HS confusion)
//   - exp and nbf, when present, are respected
//   - iss matches, when an issuer is configured
//   - the "id" claim is present
func (s *TokenService) Verify(tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unreadable claims", ErrInvalidToken)
	}

	id := strings.TrimSpace(string(c.UserID))
	if id == "" {
		return nil, fmt.Errorf("%w: token has no id claim", ErrInvalidToken)
	}

	return &Identity{ID: id, Username: c.Username}, nil
}
