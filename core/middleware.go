package core

// MiddlewarePipeline holds an ordered sequence of handlers run before the
// router. Before invoking each handler, if the response already
// is_redirect, the run stops — redirect-as-short-circuit (§4.6).
type MiddlewarePipeline struct {
	handlers []Handler
}

// Add appends a handler, already wrapped by any Middleware the caller
// wants applied (mirrors bolt/core/types.go's ChainLink.Use composition,
// minus the fluent-chain sugar, since the spec's add_middleware takes a
// plain handler).
func (p *MiddlewarePipeline) Add(h Handler) {
	p.handlers = append(p.handlers, h)
}

// Run executes the pipeline in registration order, stopping as soon as
// the response becomes a redirect.
func (p *MiddlewarePipeline) Run(ctx *Context) error {
	for _, h := range p.handlers {
		if ctx.Response.IsRedirect() {
			return nil
		}
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Wrap composes a Handler with a chain of Middleware in the order given,
// the first middleware being outermost. ember.Server.AddMiddleware and
// ember.Server.Use do not call it; it is for callers that want a nested
// chain around one Handler (e.g. the optional middleware package's
// Logger/Recovery/CORS around a route handler).
func Wrap(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
