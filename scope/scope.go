// Package scope carries per-request state through context.Context.
//
// A Scope is created once at the request boundary. Data-access interceptors
// record query and cache activity on it; the metadata builder reads it back
// when the envelope is assembled.
package scope

import (
	"context"
	"sync"
	"time"

	"github.com/drblury/apienvelope/envelope"
)

type ctxKey struct{}

// DefaultMaxQueries caps the number of statements kept per request.
const DefaultMaxQueries = 50

// Option configures a Scope.
type Option func(*Scope)

// WithQueryCapture keeps up to max executed statements. A max of zero or less
// disables capture; counts and durations are recorded regardless.
func WithQueryCapture(max int) Option {
	return func(s *Scope) {
		s.maxQueries = max
	}
}

// Scope is safe for concurrent use; handlers may fan out work that records
// queries from several goroutines.
type Scope struct {
	started time.Time

	mu          sync.Mutex
	queries     int
	queryTime   time.Duration
	cacheHits   int
	cacheMisses int
	statements  []string
	maxQueries  int
	principal   string
	requestID   string
	values      map[string]any
}

// New returns a scope whose clock started at started.
func New(started time.Time, opts ...Option) *Scope {
	s := &Scope{started: started}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithScope stores s in ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope stored in ctx, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(ctxKey{}).(*Scope)
	return s, ok && s != nil
}

// Started reports when request processing began.
func (s *Scope) Started() time.Time {
	return s.started
}

// RecordQuery adds one executed statement of duration d.
func (s *Scope) RecordQuery(statement string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.queryTime += d
	if statement != "" && len(s.statements) < s.maxQueries {
		s.statements = append(s.statements, statement)
	}
}

// RecordCacheHit counts a cache lookup that found its key.
func (s *Scope) RecordCacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

// RecordCacheMiss counts a cache lookup that did not find its key.
func (s *Scope) RecordCacheMiss() {
	s.mu.Lock()
	s.cacheMisses++
	s.mu.Unlock()
}

// QueryStats returns a snapshot of the recorded data-access activity. The
// boolean is false when nothing was recorded.
func (s *Scope) QueryStats() (envelope.QueryMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queries == 0 && s.cacheHits == 0 && s.cacheMisses == 0 {
		return envelope.QueryMetadata{}, false
	}
	stats := envelope.QueryMetadata{
		DatabaseQueriesCount:    s.queries,
		DatabaseExecutionTimeMs: float64(s.queryTime) / float64(time.Millisecond),
		CacheHits:               s.cacheHits,
		CacheMisses:             s.cacheMisses,
	}
	if len(s.statements) > 0 {
		stats.ExecutedQueries = append([]string(nil), s.statements...)
	}
	return stats, true
}

// SetPrincipal records the authenticated principal name.
func (s *Scope) SetPrincipal(name string) {
	s.mu.Lock()
	s.principal = name
	s.mu.Unlock()
}

// Principal returns the authenticated principal name, if any.
func (s *Scope) Principal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// SetRequestID records the id of the envelope being written. A failure
// envelope built after an abandoned success replaces the earlier id.
func (s *Scope) SetRequestID(id string) {
	s.mu.Lock()
	s.requestID = id
	s.mu.Unlock()
}

// RequestID returns the id of the last envelope built for the request.
func (s *Scope) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

// Set stores a value in the request bag.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

// Get reads a value from the request bag.
func (s *Scope) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}
