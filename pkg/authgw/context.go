package authgw

import (
	"context"
	"fmt"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

type identityKey struct{}

// WithIdentity returns a Go context with the resolved identity attached.
func WithIdentity(ctx context.Context, identity *users.User) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity attached by the gateway.
func IdentityFromContext(ctx context.Context) (*users.User, error) {
	identity, _ := ctx.Value(identityKey{}).(*users.User)
	if identity == nil {
		return nil, fmt.Errorf("no identity in context")
	}
	return identity, nil
}
