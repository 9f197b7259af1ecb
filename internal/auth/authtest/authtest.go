// Package authtest signs tokens for tests. The service never issues tokens
// itself, so tests mint them here with the same claim layout the real
// issuer uses.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Secret is a fixed secret shared by tests that do not care about its value.
const Secret = "test-secret-at-least-16-chars!!"

// Token returns an HS256 token carrying the given id and username, valid for
// one hour.
func Token(t testing.TB, secret string, id any, username string) string {
	t.Helper()
	return Sign(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
}

// Sign signs arbitrary claims with the given HMAC method.
func Sign(t testing.TB, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("authtest: signing token: %v", err)
	}
	return signed
}
