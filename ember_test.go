package ember

import (
	"testing"
	"time"

	"github.com/wattforge/ember/core"
)

func TestProcessBufferBasicRoute(t *testing.T) {
	app := New()
	app.Register("GET", "/hello", func(ctx *core.Context) error {
		ctx.Response.Body = []byte("world")
		return nil
	})

	out := string(app.ProcessBuffer([]byte("GET /hello HTTP/1.1\r\n\r\n")))
	if !contains(out, "HTTP/1.1 200 OK") {
		t.Errorf("expected 200 OK, got %q", out)
	}
	if !contains(out, "world") {
		t.Errorf("expected body to contain world, got %q", out)
	}
}

func TestProcessBufferFallback(t *testing.T) {
	app := New()
	out := string(app.ProcessBuffer([]byte("GET /nowhere HTTP/1.1\r\n\r\n")))
	if !contains(out, "HTTP/1.1 501") {
		t.Errorf("expected default 501 fallback, got %q", out)
	}
}

func TestProcessBufferMalformedRequest(t *testing.T) {
	app := New()
	out := string(app.ProcessBuffer([]byte("not a request\r\n\r\n")))
	if !contains(out, "HTTP/1.1 400") {
		t.Errorf("expected 400 for malformed request, got %q", out)
	}
}

// TestMiddlewareRedirectShortCircuitEndToEnd covers scenario S8 through the
// real Server, not just the isolated core pieces.
func TestMiddlewareRedirectShortCircuitEndToEnd(t *testing.T) {
	app := New()
	routeCalled := false

	app.AddMiddleware(func(ctx *core.Context) error {
		ctx.Redirect("/login")
		return nil
	})
	app.Register("GET", "/dashboard", func(ctx *core.Context) error {
		routeCalled = true
		return nil
	})

	out := string(app.ProcessBuffer([]byte("GET /dashboard HTTP/1.1\r\n\r\n")))
	if routeCalled {
		t.Error("route handler must not run once a middleware has redirected")
	}
	if !contains(out, "HTTP/1.1 302 FOUND") {
		t.Errorf("expected 302 FOUND, got %q", out)
	}
	if !contains(out, "Location: /login") {
		t.Errorf("expected Location header, got %q", out)
	}
}

func TestSessionCookieMintedAndReused(t *testing.T) {
	app := New()
	app.EnableSessions()
	app.Register("GET", "/visits", func(ctx *core.Context) error {
		n, _ := ctx.ReadSession("n")
		ctx.WriteSession("n", n+"x")
		ctx.Response.Body = []byte(n)
		return nil
	})

	first := string(app.ProcessBuffer([]byte("GET /visits HTTP/1.1\r\n\r\n")))
	if !contains(first, "Set-Cookie: id=") {
		t.Fatalf("expected a session cookie to be minted, got %q", first)
	}

	id := extractCookieValue(first, "id")
	if id == "" {
		t.Fatal("could not extract minted session id")
	}

	second := string(app.ProcessBuffer([]byte(
		"GET /visits HTTP/1.1\r\nCookie: id=" + id + "\r\n\r\n")))
	if contains(second, "Set-Cookie: id=") {
		t.Errorf("expected no new cookie to be minted for a known session, got %q", second)
	}
}

func TestSessionsDisabledByDefault(t *testing.T) {
	app := New()
	app.Register("GET", "/x", func(ctx *core.Context) error { return nil })

	out := string(app.ProcessBuffer([]byte("GET /x HTTP/1.1\r\n\r\n")))
	if contains(out, "Set-Cookie:") {
		t.Errorf("expected no session cookie while sessions are disabled, got %q", out)
	}
}

func TestUseAdaptsOnionMiddleware(t *testing.T) {
	app := New()
	var seen []string

	mw := func(next core.Handler) core.Handler {
		return func(ctx *core.Context) error {
			seen = append(seen, "mw")
			return next(ctx)
		}
	}
	app.Use(mw)
	app.Register("GET", "/x", func(ctx *core.Context) error {
		seen = append(seen, "handler")
		return nil
	})

	app.ProcessBuffer([]byte("GET /x HTTP/1.1\r\n\r\n"))
	if len(seen) != 2 || seen[0] != "mw" || seen[1] != "handler" {
		t.Errorf("expected the wrapped middleware, then the route handler (flat pipeline semantics), got %v", seen)
	}
}

func TestDefaultConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SessionDuration != 24*time.Hour {
		t.Errorf("SessionDuration = %v, want 24h", cfg.SessionDuration)
	}
	if cfg.InactiveDuration != 30*time.Minute {
		t.Errorf("InactiveDuration = %v, want 30m", cfg.InactiveDuration)
	}
}

func contains(s, sub string) bool { return indexOf(s, sub) >= 0 }

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func extractCookieValue(raw, name string) string {
	key := "Set-Cookie: " + name + "="
	i := indexOf(raw, key)
	if i < 0 {
		return ""
	}
	start := i + len(key)
	end := start
	for end < len(raw) && raw[end] != ';' && raw[end] != '\r' {
		end++
	}
	return raw[start:end]
}
