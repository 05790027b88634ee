package router

import (
	"context"
	"net/http"
	"time"
)

// New returns a new *http.ServeMux configured with the provided handler and options.
func New(apiHandle http.Handler, opts ...Option) *http.ServeMux {
	if apiHandle == nil {
		panic("router: handler cannot be nil")
	}

	settings := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(settings)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/", applyMiddlewares(apiHandle, settings.middlewareChain()))
	return mux
}

// applyMiddlewares wraps handler so that the first middleware is outermost.
func applyMiddlewares(handler http.Handler, middlewares []Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			handler = middlewares[i](handler)
		}
	}
	return handler
}

// timeoutMiddleware bounds each request. With deadline set only the request
// context expires and the handler reports the deadline error itself;
// otherwise http.TimeoutHandler answers with 503.
func timeoutMiddleware(timeout time.Duration, deadline bool) Middleware {
	return func(next http.Handler) http.Handler {
		if !deadline {
			return http.TimeoutHandler(next, timeout, "Timeout")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
