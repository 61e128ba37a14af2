package middleware

import (
	"testing"

	"github.com/google/uuid"

	"github.com/wattforge/ember/core"
)

func newTestContext(t *testing.T, raw string) *core.Context {
	t.Helper()
	req, err := core.Parse([]byte(raw), "127.0.0.1:9")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	resp := core.NewResponse(req)
	return core.NewContext(req, resp, uuid.Nil, noopStore{})
}

type noopStore struct{}

func (noopStore) CreateSession() uuid.UUID                         { return uuid.Nil }
func (noopStore) AddSession(id uuid.UUID) bool                      { return false }
func (noopStore) WriteSession(id uuid.UUID, k, v string) bool       { return false }
func (noopStore) ReadSession(id uuid.UUID, k string) (string, bool) { return "", false }
func (noopStore) ClearSession(id uuid.UUID)                         {}
func (noopStore) DeleteSession(id uuid.UUID)                        {}
func (noopStore) SessionExists(id uuid.UUID) bool                   { return false }
func (noopStore) Enabled() bool                                     { return false }

func TestRecoveryRecoversPanic(t *testing.T) {
	mw := Recovery()
	handler := mw(func(c *core.Context) error {
		panic("boom")
	})

	ctx := newTestContext(t, "GET / HTTP/1.1\r\n\r\n")
	if err := handler(ctx); err != nil {
		t.Fatalf("expected panic to be absorbed, got error: %v", err)
	}
	if ctx.Response.Code != "500" {
		t.Errorf("Code = %s, want 500", ctx.Response.Code)
	}
}

func TestRecoveryPassesThroughWithoutPanic(t *testing.T) {
	mw := Recovery()
	called := false
	handler := mw(func(c *core.Context) error {
		called = true
		return nil
	})

	ctx := newTestContext(t, "GET / HTTP/1.1\r\n\r\n")
	if err := handler(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected inner handler to be called")
	}
}

func TestLoggerCallsNextAndPropagatesError(t *testing.T) {
	wantErr := &testError{"handler failed"}
	mw := Logger()
	handler := mw(func(c *core.Context) error {
		return wantErr
	})

	ctx := newTestContext(t, "GET /x HTTP/1.1\r\n\r\n")
	if err := handler(ctx); err != wantErr {
		t.Errorf("expected Logger to propagate the handler error, got %v", err)
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestAccessLogCallsNextAndPropagatesError(t *testing.T) {
	wantErr := &testError{"handler failed"}
	mw := AccessLog()
	handler := mw(func(c *core.Context) error {
		c.Response.Body = []byte("hi")
		return wantErr
	})

	ctx := newTestContext(t, "GET /search?q=go HTTP/1.1\r\nUser-Agent: test-agent\r\n\r\n")
	if err := handler(ctx); err != wantErr {
		t.Errorf("expected AccessLog to propagate the handler error, got %v", err)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	mw := CORS()
	called := false
	handler := mw(func(c *core.Context) error {
		called = true
		return nil
	})

	ctx := newTestContext(t, "OPTIONS /x HTTP/1.1\r\nOrigin: https://example.com\r\n\r\n")
	if err := handler(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected preflight OPTIONS to short-circuit without calling next")
	}
	if ctx.Response.Code != "204" {
		t.Errorf("Code = %s, want 204", ctx.Response.Code)
	}
	if ctx.Response.Headers["Access-Control-Allow-Origin"] != "*" {
		t.Errorf("expected wildcard ACAO header, got %q", ctx.Response.Headers["Access-Control-Allow-Origin"])
	}
}

func TestCORSRestrictsOrigins(t *testing.T) {
	mw := CORSWithConfig(CORSConfig{AllowOrigins: []string{"https://allowed.example"}})
	handler := mw(func(c *core.Context) error { return nil })

	ctx := newTestContext(t, "GET /x HTTP/1.1\r\nOrigin: https://evil.example\r\n\r\n")
	handler(ctx)
	if _, ok := ctx.Response.Headers["Access-Control-Allow-Origin"]; ok {
		t.Error("expected no ACAO header for a disallowed origin")
	}
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	allowed := 0
	blocked := 0
	handler := mw(func(c *core.Context) error {
		allowed++
		return nil
	})

	for i := 0; i < 5; i++ {
		ctx := newTestContext(t, "GET /x HTTP/1.1\r\n\r\n")
		handler(ctx)
		if ctx.Response.Code == "429" {
			blocked++
		}
	}

	if allowed < 2 {
		t.Error("expected at least the burst amount of requests to be allowed")
	}
	if blocked == 0 {
		t.Error("expected requests beyond the burst to be rate limited")
	}
}
