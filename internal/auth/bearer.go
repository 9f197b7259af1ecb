package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingAuthorization   = errors.New("auth: authorization header not provided")
	ErrMalformedAuthorization = errors.New("auth: authorization header has no credential part")
)

// BearerToken extracts the credential from an Authorization header value of
// the form "<scheme> <token>". Clients have sent "Bearer", "JWT" and "Token"
// over the years, so the scheme itself is not checked; the token is always the
// second whitespace-separated field and anything after it is ignored. The JWT
// verifier decides whether the credential is any good.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingAuthorization
	}

	parts := strings.Fields(header)
	if len(parts) < 2 {
		return "", ErrMalformedAuthorization
	}
	return parts[1], nil
}
