// Package identity resolves a bearer credential to a verified caller.
package identity

import (
	"context"
	"strings"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/pkg/errors"
)

// Identity is what the rest of the system learns about a verified caller.
type Identity struct {
	Subject string
	Email   string
}

// Verifier checks a raw bearer token with the identity provider.
// Rejections are reported as apperr.Unauthorized.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.Wrap(apperr.Unauthorized, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.Wrap(apperr.Unauthorized, "malformed authorization header")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.Wrap(apperr.Unauthorized, "empty bearer token")
	}
	return token, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
