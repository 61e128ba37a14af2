package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wattforge/ember/core"
)

func newTestContext(t *testing.T, raw string) *core.Context {
	t.Helper()
	req, err := core.Parse([]byte(raw), "")
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

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return s
}

func TestJWTMissingHeader(t *testing.T) {
	secret := []byte("secret")
	mw := JWT(Config{Secret: secret})
	handler := mw(func(c *core.Context) error { return nil })

	ctx := newTestContext(t, "GET /private HTTP/1.1\r\n\r\n")
	handler(ctx)
	if ctx.Response.Code != "401" {
		t.Errorf("Code = %s, want 401", ctx.Response.Code)
	}
}

func TestJWTValidTokenSetsClaims(t *testing.T) {
	secret := []byte("secret")
	token := signToken(t, secret, jwt.MapClaims{"sub": "alice"})

	mw := JWT(Config{Secret: secret})
	var gotClaims jwt.MapClaims
	handler := mw(func(c *core.Context) error {
		gotClaims = c.MustGet("user").(jwt.MapClaims)
		return nil
	})

	ctx := newTestContext(t, "GET /private HTTP/1.1\r\nAuthorization: Bearer "+token+"\r\n\r\n")
	if err := handler(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotClaims["sub"] != "alice" {
		t.Errorf("claims[sub] = %v, want alice", gotClaims["sub"])
	}
}

func TestJWTInvalidTokenRejected(t *testing.T) {
	mw := JWT(Config{Secret: []byte("secret")})
	handler := mw(func(c *core.Context) error { return nil })

	ctx := newTestContext(t, "GET /private HTTP/1.1\r\nAuthorization: Bearer not-a-jwt\r\n\r\n")
	handler(ctx)
	if ctx.Response.Code != "401" {
		t.Errorf("Code = %s, want 401", ctx.Response.Code)
	}
}

func TestJWTSkipPaths(t *testing.T) {
	mw := JWT(Config{Secret: []byte("secret"), SkipPaths: []string{"/public"}})
	called := false
	handler := mw(func(c *core.Context) error {
		called = true
		return nil
	})

	ctx := newTestContext(t, "GET /public HTTP/1.1\r\n\r\n")
	handler(ctx)
	if !called {
		t.Error("expected a skip-listed path to bypass auth entirely")
	}
}

func TestJWTCachesValidatedToken(t *testing.T) {
	secret := []byte("secret")
	token := signToken(t, secret, jwt.MapClaims{"sub": "bob"})
	mw := JWT(Config{Secret: secret, CacheTTL: time.Minute})
	handler := mw(func(c *core.Context) error { return nil })

	ctx1 := newTestContext(t, "GET /private HTTP/1.1\r\nAuthorization: Bearer "+token+"\r\n\r\n")
	handler(ctx1)
	ctx2 := newTestContext(t, "GET /private HTTP/1.1\r\nAuthorization: Bearer "+token+"\r\n\r\n")
	handler(ctx2)

	if ctx1.Response.Code == "401" || ctx2.Response.Code == "401" {
		t.Error("expected both requests with a valid token to succeed")
	}
}
