package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/rpc"
)

// Header and metadata keys.
const (
	IdentityHeader  = "X-Trustplay-Identity"
	RequestIDHeader = "X-Request-Id"

	identityMetadataKey  = "x-trustplay-identity"
	requestIDMetadataKey = "x-request-id"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	requestIDKey
)

// WithIdentity returns ctx carrying the caller identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the caller identity in ctx, or "".
func IdentityFrom(ctx context.Context) string {
	v, _ := ctx.Value(identityKey).(string)
	return v
}

// RequestIDFrom returns the request id in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// IdentityMiddleware copies the identity header into the request context.
// Handlers for mutating routes reject requests without one.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(IdentityHeader); id != "" {
			if err := model.ValidateIdentity("identity", id); err != nil {
				writeEngineError(w, err)
				return
			}
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware assigns every request an id, reusing the caller's
// X-Request-Id when present, and echoes it in the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// requireIdentity returns the caller identity or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := IdentityFrom(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+IdentityHeader+" header")
		return "", false
	}
	return id, true
}

// IdentityInterceptor reads the caller identity from metadata. Mutating
// methods without one fail with codes.Unauthenticated.
func IdentityInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(identityMetadataKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id != "" {
		if err := model.ValidateIdentity("identity", id); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		ctx = WithIdentity(ctx, id)
	} else if rpc.Mutating(methodName(info.FullMethod)) {
		return nil, status.Error(codes.Unauthenticated, "missing "+identityMetadataKey+" metadata")
	}
	return handler(ctx, req)
}

// RequestIDInterceptor assigns every call an id, reusing the caller's
// x-request-id metadata when present, and returns it as a header.
func RequestIDInterceptor(
	ctx context.Context,
	req any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, id))
	return handler(withRequestID(ctx, id), req)
}

// methodName strips the service prefix from a full method path.
func methodName(fullMethod string) string {
	return fullMethod[strings.LastIndex(fullMethod, "/")+1:]
}
