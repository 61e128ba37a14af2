package core

import "github.com/google/uuid"

// Context is passed to every middleware and route handler. It exposes the
// request, the mutable response, the resolved session id (possibly Nil),
// and delegating methods onto the SessionStore, plus a request-scoped
// value store for passing data between middleware and handlers (the
// latter not in the §3 data model, but universal in the pack's frameworks
// — see bolt/core/context.go's Set/Get/MustGet).
type Context struct {
	Request   *Request
	Response  *Response
	SessionID uuid.UUID

	store   SessionStore
	values  map[string]any
}

// NewContext builds a Context wired to store.
func NewContext(req *Request, resp *Response, sessionID uuid.UUID, store SessionStore) *Context {
	return &Context{Request: req, Response: resp, SessionID: sessionID, store: store}
}

// Method and Path are convenience accessors used heavily by middleware
// (CORS, rate limiting, routing).
func (c *Context) Method() string { return c.Request.Method }
func (c *Context) Path() string   { return c.Request.Document }

// GetHeader reads a request header case-insensitively.
func (c *Context) GetHeader(name string) string { return c.Request.Header(name) }

// SetHeader sets a response header.
func (c *Context) SetHeader(name, value string) { c.Response.SetHeader(name, value) }

// Set stores a value in the per-request store.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Get retrieves a value from the per-request store.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// MustGet retrieves a value, panicking if it is absent — for handlers
// that only run after middleware guarantees the key's presence (e.g. JWT
// claims after an auth middleware).
func (c *Context) MustGet(key string) any {
	v, ok := c.values[key]
	if !ok {
		panic("core: key \"" + key + "\" not present in context")
	}
	return v
}

// ReadSession, WriteSession, ClearSession, DeleteSession, NewSession and
// SessionExists delegate to the SessionStore (§4.8).
func (c *Context) ReadSession(key string) (string, bool) {
	return c.store.ReadSession(c.SessionID, key)
}

func (c *Context) WriteSession(key, value string) bool {
	return c.store.WriteSession(c.SessionID, key, value)
}

func (c *Context) ClearSession() { c.store.ClearSession(c.SessionID) }

func (c *Context) DeleteSession() { c.store.DeleteSession(c.SessionID) }

func (c *Context) NewSession() uuid.UUID {
	id := c.store.CreateSession()
	c.SessionID = id
	return id
}

func (c *Context) SessionExists() bool { return c.store.SessionExists(c.SessionID) }

// Redirect sets status 302 and Location — the canonical way to
// short-circuit the middleware pipeline and bypass the router (§4.8).
func (c *Context) Redirect(location string) {
	c.Response.SetStatus("302")
	c.Response.SetHeader("Location", location)
}

// JSON is a convenience pass-through to Response.JSON.
func (c *Context) JSON(code string, v any) error {
	return c.Response.JSON(code, v)
}
