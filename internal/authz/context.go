// ABOUTME: Authorization context for tracking identity through request handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating auth info via context

package authz

import (
	"context"
)

// Identity holds the authorized caller information extracted from a
// request. Populated by the HTTP middleware and gRPC interceptors.
type Identity struct {
	Principal string         // token principal, device name, or session scope
	Kind      ConnectionKind // connection classification
	Method    Method         // which credential satisfied authorization
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityKey{})
	if val == nil {
		return nil
	}
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}

// MustFromContext retrieves the Identity from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Identity {
	id := FromContext(ctx)
	if id == nil {
		panic("authz: Identity not found in context")
	}
	return id
}
