package router

import (
	"slices"
	"time"
)

// Config holds the router settings applied by the default middleware chain.
type Config struct {
	// Timeout bounds each request. Zero disables the timeout middleware.
	Timeout time.Duration
	CORS    CORSConfig
	// QuietdownRoutes are paths the logging middleware skips.
	QuietdownRoutes []string
	// HideHeaders are redacted from request logs.
	HideHeaders []string
}

// CORSConfig lists the origins, methods and headers answered on preflight.
// CORS is enforced only when Origins is non-empty.
type CORSConfig struct {
	Origins          []string
	Methods          []string
	Headers          []string
	AllowCredentials bool
}

func (c Config) clone() Config {
	c.QuietdownRoutes = slices.Clone(c.QuietdownRoutes)
	c.HideHeaders = slices.Clone(c.HideHeaders)
	c.CORS.Origins = slices.Clone(c.CORS.Origins)
	c.CORS.Methods = slices.Clone(c.CORS.Methods)
	c.CORS.Headers = slices.Clone(c.CORS.Headers)
	return c
}
