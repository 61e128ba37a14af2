package core

import "github.com/google/uuid"

// Handler processes a request through a Context and returns an error for
// truly exceptional conditions; ordinary error responses are expressed by
// mutating ctx.Response, not by returning an error (mirrors the teacher's
// Handler func(*Context) error convention).
type Handler func(ctx *Context) error

// Middleware wraps a Handler to produce another, the composition unit of
// the MiddlewarePipeline (§4.6).
type Middleware func(next Handler) Handler

// SessionStore is the subset of session.Store's API the Context needs.
// Kept as an interface here (rather than importing the session package
// directly) so core stays a leaf package, the way bolt/core/server.go
// depends only on small Request/ResponseWriter/Header interfaces instead
// of concrete shockwave types.
type SessionStore interface {
	CreateSession() uuid.UUID
	AddSession(id uuid.UUID) bool
	WriteSession(id uuid.UUID, key, value string) bool
	ReadSession(id uuid.UUID, key string) (string, bool)
	ClearSession(id uuid.UUID)
	DeleteSession(id uuid.UUID)
	SessionExists(id uuid.UUID) bool
	Enabled() bool
}
