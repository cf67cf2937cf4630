package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

type Verifier interface {
	Verify(raw string) (Identity, error)
}

// UnaryInterceptor reads "authorization: Bearer <jwt>" from the incoming
// metadata and stores the verified identity in the context. Health checks
// pass through unauthenticated.
func UnaryInterceptor(v Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		raw := bearer(ctx)
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "authorization token is required")
		}
		id, err := v.Verify(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization token")
		}
		return handler(WithIdentity(ctx, id), req)
	}
}

func bearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if token, found := strings.CutPrefix(v, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// Credentials attaches a bearer token to outgoing calls.
type Credentials struct {
	Token    string
	Insecure bool
}

func (c Credentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.Token}, nil
}

func (c Credentials) RequireTransportSecurity() bool { return !c.Insecure }
