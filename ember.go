// Package ember implements a self-contained HTTP/1.1 server library: a
// byte-level request parser, a response serializer, a method+path
// dispatch engine with middleware, and a concurrent in-memory session
// store with TTL-based eviction. See SPEC_FULL.md for the full design.
package ember

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wattforge/ember/core"
	"github.com/wattforge/ember/server"
	"github.com/wattforge/ember/session"
)

// Config holds ember.Server configuration: worker pool size, read buffer
// size and the session store's default durations. A plain struct with a
// DefaultConfig constructor, mirroring bolt/core/types.go's
// Config/DefaultConfig rather than reaching for an external config
// library the teacher itself never uses.
type Config struct {
	Workers          int
	ReadBufferSize   int
	SessionDuration  time.Duration
	InactiveDuration time.Duration
	PruneRate        time.Duration
	Logger           *logrus.Logger
}

// DefaultConfig returns sensible defaults: no hard session TTL cap beyond
// a generous 24h absolute lifetime, 30 minutes of idle tolerance, and a
// one-minute minimum interval between prune sweeps.
func DefaultConfig() Config {
	return Config{
		SessionDuration:  24 * time.Hour,
		InactiveDuration: 30 * time.Minute,
		PruneRate:        time.Minute,
	}
}

// Server is the top-level, user-facing type exposing the §6 API surface.
type Server struct {
	router   *core.Router
	pipeline *core.MiddlewarePipeline
	sessions *session.Store
	srv      *server.Server
	log      *logrus.Logger
	cfg      Config
}

// New builds a Server with default configuration.
func New() *Server {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig builds a Server with explicit configuration, mirroring
// bolt/core/app.go's New()/NewWithConfig() pair. Sessions start disabled;
// EnableSessions turns them on.
func NewWithConfig(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &Server{
		router:   core.NewRouter(),
		pipeline: &core.MiddlewarePipeline{},
		sessions: session.New(cfg.SessionDuration, cfg.InactiveDuration, cfg.PruneRate),
		log:      cfg.Logger,
		cfg:      cfg,
	}
	s.sessions.Disable()
	srvCfg := server.DefaultConfig()
	if cfg.Workers > 0 {
		srvCfg.Workers = cfg.Workers
	}
	if cfg.ReadBufferSize > 0 {
		srvCfg.ReadBufferSize = cfg.ReadBufferSize
	}
	s.srv = server.New(srvCfg, s.ProcessBuffer, s.log)
	return s
}

// Register installs a handler for method+path (exact match only).
func (s *Server) Register(method, path string, h core.Handler) bool {
	return s.router.Register(method, path, h)
}

// Unregister removes a previously registered handler.
func (s *Server) Unregister(method, path string) bool {
	return s.router.Unregister(method, path)
}

// Fallback replaces the handler invoked when no route matches.
func (s *Server) Fallback(h core.Handler) { s.router.Fallback(h) }

// AddMiddleware appends a plain handler to the middleware pipeline (§6
// add_middleware(handler)). It runs in registration order before the
// router and may short-circuit the rest of the chain by calling
// ctx.Redirect.
func (s *Server) AddMiddleware(h core.Handler) { s.pipeline.Add(h) }

// Use adapts a core.Middleware (the func(next Handler) Handler shape the
// optional middleware package's Logger/Recovery/CORS/RateLimit/JWT all
// use) into the flat pipeline: the middleware's "next" is a no-op, and the
// pipeline then continues to whatever was registered after it. The
// wrapped middleware therefore does not enclose later pipeline entries or
// the route handler: Recovery only recovers panics raised inside its own
// no-op chain, and Logger/AccessLog see the response as it stands before
// the router runs.
func (s *Server) Use(mw core.Middleware) {
	noop := func(ctx *core.Context) error { return nil }
	s.pipeline.Add(mw(noop))
}

// EnableSessions turns the session store on.
func (s *Server) EnableSessions() { s.sessions.Enable() }

// DisableSessions turns the session store off, clearing it.
func (s *Server) DisableSessions() { s.sessions.Disable() }

// SetSessionDuration, SetInactiveDuration and SetPruneRate adjust the
// session store's TTLs and sweep cadence.
func (s *Server) SetSessionDuration(d time.Duration)  { s.sessions.SetSessionDuration(d) }
func (s *Server) SetInactiveDuration(d time.Duration) { s.sessions.SetInactiveDuration(d) }
func (s *Server) SetPruneRate(d time.Duration)        { s.sessions.SetPruneRate(d) }

// Listen starts serving addr with the configured worker pool.
func (s *Server) Listen(addr string) error {
	return s.srv.ListenAndServe(addr)
}

// ListenWith starts serving addr with an explicit worker count,
// overriding the configured default (§6 listen_with(addr, n)).
func (s *Server) ListenWith(addr string, workers int) error {
	if workers > 0 {
		s.cfg.Workers = workers
		srvCfg := server.DefaultConfig()
		srvCfg.Workers = workers
		if s.cfg.ReadBufferSize > 0 {
			srvCfg.ReadBufferSize = s.cfg.ReadBufferSize
		}
		s.srv = server.New(srvCfg, s.ProcessBuffer, s.log)
	}
	return s.srv.ListenAndServe(addr)
}

// Shutdown gracefully stops the server and disables the session store.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.sessions.Close()
	return s.srv.Shutdown(ctx)
}

// ProcessBuffer runs the full request/response cycle over buf without
// touching a socket — the in-process testing entry point the spec calls
// process_buffer(bytes) -> bytes.
func (s *Server) ProcessBuffer(buf []byte) []byte {
	req, err := core.Parse(buf, "")
	if err != nil {
		return s.errorResponse(err)
	}

	resp := core.NewResponse(req)
	sessionID := s.resolveSession(req, resp)

	ctx := core.NewContext(req, resp, sessionID, s.sessions)

	if err := s.pipeline.Run(ctx); err != nil {
		s.log.WithError(err).Error("ember: middleware returned error")
	} else if err := s.router.Call(ctx); err != nil {
		s.log.WithError(err).Error("ember: handler returned error")
	}

	return ctx.Response.Serialize()
}

// resolveSession implements §4.4's session-aware response construction:
// look up the request's id cookie; if absent or unknown, mint a new
// session and append an id=<uuid>; HttpOnly Set-Cookie.
func (s *Server) resolveSession(req *core.Request, resp *core.Response) uuid.UUID {
	if !s.sessions.Enabled() {
		return session.Nil
	}
	if c, ok := req.Cookies["id"]; ok {
		if parsed, err := uuid.Parse(c.Value); err == nil && s.sessions.SessionExists(parsed) {
			return parsed
		}
	}
	newID := s.sessions.CreateSession()
	if newID == session.Nil {
		return session.Nil
	}
	resp.AddCookie(core.Cookie{Name: "id", Value: newID.String(), HTTPOnly: true, MaxAge: -1})
	return newID
}

func (s *Server) errorResponse(err error) []byte {
	pe, ok := err.(*core.ParseError)
	code, body := "400", "<h1>400: Bad Request</h1>"
	switch {
	case ok && pe.Kind == core.ProtoVersionInvalid:
		code, body = "505", "<h1>505: HTTP Version Not Supported</h1>"
	case ok && pe.Kind == core.RequestTooLarge:
		code, body = "413", "<h1>413: Payload Too Large</h1>"
	}
	resp := &core.Response{
		Code: code,
		Headers: map[string]string{
			"Connection":   "close",
			"Content-Type": "text/html",
		},
		Body: []byte(body),
	}
	return resp.Serialize()
}
