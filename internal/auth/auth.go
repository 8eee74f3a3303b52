// Package auth verifies identity tokens issued by Firebase Authentication and
// applies email verification codes through the Identity Toolkit API.
package auth

import (
	"context"
	"strings"

	"github.com/travelties/service_layer/internal/errors"
)

// Identity is the verified caller.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// Verifier validates a bearer token and returns the caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UID != ""
}

// DevPrefix marks development tokens accepted by InsecureVerifier.
const DevPrefix = "dev:"

// InsecureVerifier accepts "dev:<uid>" tokens without any signature check.
// It exists for local development against the in-memory store.
type InsecureVerifier struct{}

// Verify implements Verifier.
func (InsecureVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if !strings.HasPrefix(token, DevPrefix) {
		return Identity{}, errors.InvalidToken(nil).WithDetails("reason", "expected dev:<uid>")
	}
	uid := strings.TrimSpace(strings.TrimPrefix(token, DevPrefix))
	if uid == "" {
		return Identity{}, errors.InvalidToken(nil).WithDetails("reason", "empty uid")
	}
	return Identity{UID: uid, Email: uid + "@dev.local", EmailVerified: true}, nil
}
