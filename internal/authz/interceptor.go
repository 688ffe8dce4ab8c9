// ABOUTME: gRPC interceptors authorizing device connections via the authorizer
// ABOUTME: Extracts credentials from metadata and populates context for handlers

package authz

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Metadata keys carrying handshake credentials on gRPC connections.
const (
	mdAuthorization  = "authorization"
	mdSharedAuth     = "x-shared-auth"
	mdDeviceIdentity = "x-device-identity"
)

// UnaryInterceptor returns a gRPC unary interceptor that authorizes each
// request as a device connection.
func UnaryInterceptor(authorizer *Authorizer, posture Posture) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		id, err := authorizeGRPC(ctx, authorizer, posture)
		if err != nil {
			return nil, err
		}
		return handler(WithIdentity(ctx, id), req)
	}
}

// StreamInterceptor returns a gRPC stream interceptor that authorizes each
// stream as a device connection.
func StreamInterceptor(authorizer *Authorizer, posture Posture) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		id, err := authorizeGRPC(ss.Context(), authorizer, posture)
		if err != nil {
			return err
		}
		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          WithIdentity(ss.Context(), id),
		}
		return handler(srv, wrapped)
	}
}

// wrappedServerStream wraps a grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// authorizeGRPC runs the decision procedure over metadata-borne
// credentials and maps the verdict to a gRPC status.
func authorizeGRPC(ctx context.Context, authorizer *Authorizer, posture Posture) (*Identity, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	creds := Credentials{Kind: KindDevice}
	if vals := md.Get(mdAuthorization); len(vals) > 0 {
		creds.Token = bearerToken(vals[0])
	}
	if vals := md.Get(mdSharedAuth); len(vals) > 0 {
		creds.SharedAuth = vals[0] == "true" || vals[0] == "1"
	}
	if vals := md.Get(mdDeviceIdentity); len(vals) > 0 {
		creds.DeviceProof = vals[0]
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		creds.SourceAddr = remoteHost(p.Addr.String())
	}

	verdict := authorizer.Authorize(ctx, creds, posture)
	if !verdict.Allowed {
		return nil, denialStatus(verdict.Reason)
	}

	return &Identity{
		Principal: verdict.Identity,
		Kind:      KindDevice,
		Method:    verdict.Method,
	}, nil
}

// denialStatus maps a deny reason to the gRPC status surfaced to the caller.
func denialStatus(reason DenyReason) error {
	switch reason {
	case DenySystemLocked:
		return status.Error(codes.Unavailable, string(reason))
	case DenyRateLimited:
		return status.Error(codes.ResourceExhausted, string(reason))
	default:
		return status.Error(codes.Unauthenticated, string(DenyInvalidCredentials))
	}
}
