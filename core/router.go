package core

// Router is a method+path dispatch table restricted to exact-string
// matching (the spec's Non-goal of path-pattern matching rules out a
// radix tree — bolt/core/router.go carries one, but only its static
// map[string]Handler fast path survives here, see DESIGN.md).
type Router struct {
	routes   map[string]Handler
	fallback Handler
}

// NewRouter builds a Router whose fallback responds 501 Not Implemented.
func NewRouter() *Router {
	return &Router{
		routes: make(map[string]Handler),
		fallback: func(ctx *Context) error {
			ctx.Response = NotImplementedResponse(ctx.Request)
			return nil
		},
	}
}

func routeKey(method, path string) string { return method + " " + path }

// Register inserts a handler for method+path. Always returns true
// (insertion always succeeds, overwriting any prior handler) — kept as a
// bool return to match the §6 API surface that callers rely on for
// success/failure signaling.
func (r *Router) Register(method, path string, h Handler) bool {
	r.routes[routeKey(method, path)] = h
	return true
}

// Unregister removes a handler. Returns true iff one existed.
func (r *Router) Unregister(method, path string) bool {
	key := routeKey(method, path)
	if _, ok := r.routes[key]; !ok {
		return false
	}
	delete(r.routes, key)
	return true
}

// Fallback replaces the handler invoked when no route matches.
func (r *Router) Fallback(h Handler) { r.fallback = h }

// Call dispatches ctx to the matching handler, or the fallback on a miss.
// Does nothing if the response is already a redirect (§4.5).
func (r *Router) Call(ctx *Context) error {
	if ctx.Response.IsRedirect() {
		return nil
	}
	if h, ok := r.routes[routeKey(ctx.Request.Method, ctx.Request.Document)]; ok {
		return h(ctx)
	}
	return r.fallback(ctx)
}
