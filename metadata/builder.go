// Package metadata assembles the per-request metadata block of an envelope.
package metadata

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/apienvelope/config"
	"github.com/drblury/apienvelope/envelope"
	"github.com/drblury/apienvelope/scope"
)

// Keys of the additional metadata map.
const (
	KeyPayloadSize = "payloadSize"
	KeyClientIP    = "clientIp"
	KeyUserAgent   = "userAgent"
	KeyUser        = "user"
)

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces time.Now. Timestamps are always reported in UTC.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(next func() string) Option {
	return func(b *Builder) {
		if next != nil {
			b.requestID = next
		}
	}
}

// WithCorrelationIDs replaces the generator used when a request carries no
// correlation id and no trace.
func WithCorrelationIDs(next func() string) Option {
	return func(b *Builder) {
		if next != nil {
			b.correlationID = next
		}
	}
}

// Builder is safe for concurrent use. Every call to Build returns a fresh
// metadata value owned by the caller.
type Builder struct {
	settings      config.Settings
	now           func() time.Time
	requestID     func() string
	correlationID func() string
}

// NewBuilder returns a builder for settings.
func NewBuilder(settings config.Settings, opts ...Option) *Builder {
	b := &Builder{
		settings:      settings,
		now:           time.Now,
		requestID:     NewRequestID,
		correlationID: NewCorrelationID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Now reads the builder clock.
func (b *Builder) Now() time.Time {
	return b.now()
}

// Build returns the metadata for req. started marks the beginning of
// processing and is ignored when zero. failed selects the failure path,
// where additional diagnostics are always collected.
func (b *Builder) Build(req *http.Request, started time.Time, failed bool) *envelope.ResponseMetadata {
	now := b.now()
	meta := &envelope.ResponseMetadata{
		RequestID: b.requestID(),
		Timestamp: now.UTC(),
		Version:   b.settings.DefaultVersion,
	}
	if req == nil {
		return meta
	}

	meta.Method = req.Method
	if req.URL != nil {
		meta.Path = req.URL.Path
	}
	meta.Version = b.version(req)

	if b.settings.ExecutionTime && !started.IsZero() {
		elapsed := now.Sub(started).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		meta.ExecutionTimeMs = &elapsed
	}

	if b.settings.CorrelationID {
		meta.CorrelationID = b.correlation(req)
	}

	s, hasScope := scope.FromContext(req.Context())
	if hasScope {
		s.SetRequestID(meta.RequestID)
	}
	if b.settings.QueryStats && hasScope {
		if stats, ok := s.QueryStats(); ok {
			meta.Query = &stats
		}
	}

	if failed || b.settings.AdditionalMetadata {
		meta.Additional = b.additional(req, s)
	}
	return meta
}

func (b *Builder) version(req *http.Request) string {
	if h := b.settings.VersionHeader; h != "" {
		if v := strings.TrimSpace(req.Header.Get(h)); v != "" {
			return v
		}
	}
	if p := b.settings.VersionQueryParam; p != "" && req.URL != nil {
		if v := strings.TrimSpace(req.URL.Query().Get(p)); v != "" {
			return v
		}
	}
	return b.settings.DefaultVersion
}

// correlation prefers the inbound header, then the active trace id, then a
// freshly generated id.
func (b *Builder) correlation(req *http.Request) string {
	if h := b.settings.CorrelationHeader; h != "" {
		if v := strings.TrimSpace(req.Header.Get(h)); v != "" {
			return v
		}
	}
	if sc := trace.SpanContextFromContext(req.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return b.correlationID()
}

func (b *Builder) additional(req *http.Request, s *scope.Scope) map[string]any {
	extra := make(map[string]any)
	if req.ContentLength > 0 {
		extra[KeyPayloadSize] = req.ContentLength
	}
	if ip := ClientIP(req); ip != "" {
		extra[KeyClientIP] = ip
	}
	if ua := req.UserAgent(); ua != "" {
		extra[KeyUserAgent] = ua
	}
	if prefix := b.settings.CustomHeaderPrefix; prefix != "" {
		for name, values := range req.Header {
			if len(values) > 0 && len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
				extra[name] = strings.Join(values, ", ")
			}
		}
	}
	if s != nil {
		if p := s.Principal(); p != "" {
			extra[KeyUser] = p
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// ClientIP resolves the client address from X-Forwarded-For, X-Real-IP or
// the connection's remote address, in that order.
func ClientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}
