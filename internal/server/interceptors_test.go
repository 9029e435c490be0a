package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/deepesh-sr/Trustplay/internal/rpc"
)

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func info(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(method)}
}

func TestAuthInterceptor_Disabled(t *testing.T) {
	resp, err := AuthInterceptor("")(context.Background(), nil, info("ListRooms"), stubHandler)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp != "ok" {
		t.Fatalf("expected 'ok', got %v", resp)
	}
}

func TestAuthInterceptor_HealthExempt(t *testing.T) {
	h := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	if _, err := AuthInterceptor("secret")(context.Background(), nil, h, stubHandler); err != nil {
		t.Fatalf("expected health to pass, got %v", err)
	}
}

func TestAuthInterceptor_Rejects(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"no header", metadata.NewIncomingContext(context.Background(), metadata.Pairs("other", "v"))},
		{"wrong scheme", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic secret"))},
		{"wrong token", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AuthInterceptor("secret")(tt.ctx, nil, info("ListRooms"), stubHandler)
			if status.Code(err) != codes.Unauthenticated {
				t.Fatalf("expected Unauthenticated, got %v", err)
			}
		})
	}
}

func TestAuthInterceptor_ValidToken(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer secret"))
	if _, err := AuthInterceptor("secret")(ctx, nil, info("ListRooms"), stubHandler); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestIdentityInterceptor(t *testing.T) {
	var seen string
	capture := func(ctx context.Context, _ any) (any, error) {
		seen = IdentityFrom(ctx)
		return "ok", nil
	}

	_, err := IdentityInterceptor(context.Background(), nil, info("CreateRoom"), capture)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("mutating call without identity: expected Unauthenticated, got %v", err)
	}

	if _, err := IdentityInterceptor(context.Background(), nil, info("GetRoom"), capture); err != nil {
		t.Fatalf("read without identity: %v", err)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-trustplay-identity", "alice"))
	if _, err := IdentityInterceptor(ctx, nil, info("CreateRoom"), capture); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "alice" {
		t.Fatalf("identity = %q, want alice", seen)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicky := func(context.Context, any) (any, error) { panic("boom") }
	_, err := RecoveryInterceptor(context.Background(), nil, info("GetRoom"), panicky)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := AuthMiddleware("secret", ok)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health exempt", http.MethodGet, "/v1/health", "", http.StatusNoContent},
		{"missing", http.MethodGet, "/v1/rooms", "", http.StatusUnauthorized},
		{"bad scheme", http.MethodGet, "/v1/rooms", "Token secret", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/v1/rooms", "Bearer nope", http.StatusUnauthorized},
		{"good", http.MethodGet, "/v1/rooms", "Bearer secret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("generated id %q not echoed (header %q)", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "req-1" {
		t.Fatalf("request id = %q, want req-1", seen)
	}
}

func TestLoggingMiddlewareRecovers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := LoggingMiddleware(logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestMethodName(t *testing.T) {
	if got := methodName(rpc.FullMethod("CastVote")); got != "CastVote" {
		t.Fatalf("methodName = %q", got)
	}
}
