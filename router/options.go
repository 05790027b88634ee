package router

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/drblury/apienvelope/responder"
)

// Middleware wraps an http.Handler to produce a new http.Handler.
type Middleware func(http.Handler) http.Handler

// Option configures the router via the functional options pattern.
type Option func(*options)

// stage names a built-in middleware. Stages run in declaration order.
type stage int

const (
	stageLogging stage = iota
	stageCORS
	stageOpenAPI
	stageTimeout
)

type options struct {
	config    Config
	logger    *slog.Logger
	swagger   *openapi3.T
	responder *responder.Responder
	prepend   []Middleware
	append    []Middleware
	override  []Middleware
	skipped   map[stage]bool
}

func defaultOptions() *options {
	return &options{
		config:  Config{Timeout: 30 * time.Second},
		logger:  slog.Default(),
		skipped: make(map[stage]bool),
	}
}

func (o *options) middlewareChain() []Middleware {
	if len(o.override) > 0 {
		return slices.Clone(o.override)
	}

	chain := slices.Clone(o.prepend)
	if o.responder != nil {
		chain = append(chain, o.responder.Middleware())
	}
	for _, s := range []stage{stageLogging, stageCORS, stageOpenAPI, stageTimeout} {
		if o.skipped[s] {
			continue
		}
		if mw := o.builtin(s); mw != nil {
			chain = append(chain, mw)
		}
	}
	return append(chain, o.append...)
}

// builtin returns the middleware for s, or nil when its configuration leaves
// nothing to do. CORS runs ahead of validation so preflights never reach the
// OpenAPI document.
func (o *options) builtin(s stage) Middleware {
	switch s {
	case stageLogging:
		if o.logger == nil {
			return nil
		}
		return newAccessLog(o.logger, o.config).middleware
	case stageCORS:
		if len(o.config.CORS.Origins) == 0 {
			return nil
		}
		return newCORSPolicy(o.config.CORS, o.responder).middleware
	case stageOpenAPI:
		if o.swagger == nil {
			return nil
		}
		return oapiMiddleware(o.swagger, o.responder)
	case stageTimeout:
		if o.config.Timeout <= 0 {
			return nil
		}
		return timeoutMiddleware(o.config.Timeout, o.responder != nil)
	}
	return nil
}

func without(s stage) Option {
	return func(o *options) { o.skipped[s] = true }
}

// WithConfig replaces the router configuration with the provided value.
func WithConfig(cfg Config) Option {
	cfg = cfg.clone()
	return func(o *options) {
		o.config = cfg
	}
}

// WithConfigMutator applies a mutation to the router configuration after defaults are set.
func WithConfigMutator(mutator func(*Config)) Option {
	return func(o *options) {
		if mutator != nil {
			mutator(&o.config)
		}
	}
}

// WithLogger sets the logger used for access logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSwagger wires the OpenAPI document for request validation.
func WithSwagger(swagger *openapi3.T) Option {
	return func(o *options) {
		o.swagger = swagger
	}
}

// WithResponder routes middleware failures through r. The chain then opens
// with r's request boundary: OpenAPI validation failures and refused CORS
// preflights become failure envelopes, timeouts cancel the request context
// instead of replacing the response body, and access logs carry the
// envelope's request id.
func WithResponder(r *responder.Responder) Option {
	return func(o *options) {
		o.responder = r
	}
}

// WithMiddlewares prepends custom middlewares ahead of the default chain.
func WithMiddlewares(middlewares ...Middleware) Option {
	return func(o *options) {
		o.prepend = append(o.prepend, middlewares...)
	}
}

// WithTrailingMiddlewares appends middlewares after the default chain.
func WithTrailingMiddlewares(middlewares ...Middleware) Option {
	return func(o *options) {
		o.append = append(o.append, middlewares...)
	}
}

// WithMiddlewareChain fully overrides the middleware chain, including the
// responder boundary.
func WithMiddlewareChain(middlewares ...Middleware) Option {
	cloned := slices.Clone(middlewares)
	return func(o *options) {
		o.override = cloned
	}
}

// WithoutOpenAPIValidation disables the OpenAPI validation middleware.
func WithoutOpenAPIValidation() Option { return without(stageOpenAPI) }

// WithoutCORSMiddleware disables the CORS middleware regardless of configuration.
func WithoutCORSMiddleware() Option { return without(stageCORS) }

// WithoutTimeoutMiddleware disables the timeout middleware.
func WithoutTimeoutMiddleware() Option { return without(stageTimeout) }

// WithoutLoggingMiddleware disables access logging.
func WithoutLoggingMiddleware() Option { return without(stageLogging) }
