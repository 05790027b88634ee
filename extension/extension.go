// Package extension contains ready-made pipeline extensions.
package extension

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/apienvelope/envelope"
	"github.com/drblury/apienvelope/pipeline"
)

// Response headers set by HeaderEnricher.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// HeaderEnricher mirrors the request and correlation ids of the envelope
// into response headers.
type HeaderEnricher struct {
	Rank int
}

func (h HeaderEnricher) Name() string { return "headers" }
func (h HeaderEnricher) Order() int   { return h.Rank }

func (h HeaderEnricher) Enrich(_ context.Context, env *envelope.Envelope, rc *pipeline.RequestContext) error {
	if env == nil || env.Metadata == nil || rc == nil || rc.Header == nil {
		return nil
	}
	if id := env.Metadata.RequestID; id != "" {
		rc.Header.Set(HeaderRequestID, id)
	}
	if id := env.Metadata.CorrelationID; id != "" {
		rc.Header.Set(HeaderCorrelationID, id)
	}
	return nil
}

// TraceProvider reports the active OpenTelemetry span as trace_id, trace_spanId
// and trace_sampled.
type TraceProvider struct{}

func (TraceProvider) Name() string { return "trace" }

func (TraceProvider) Metadata(ctx context.Context, _ *pipeline.RequestContext) (map[string]any, error) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, nil
	}
	return map[string]any{
		"id":      sc.TraceID().String(),
		"spanId":  sc.SpanID().String(),
		"sampled": sc.IsSampled(),
	}, nil
}

// KeyReader is the subset of a go-redis client used by RedisKeyProvider.
type KeyReader interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// RedisKeyProvider reads a fixed set of keys, such as feature flags or a
// deployment marker, and reports the ones that exist.
type RedisKeyProvider struct {
	name   string
	client KeyReader
	keys   map[string]string
}

// NewRedisKeyProvider reports each redis key under its metadata name. keys
// maps metadata names to redis keys.
func NewRedisKeyProvider(name string, client KeyReader, keys map[string]string) *RedisKeyProvider {
	return &RedisKeyProvider{name: name, client: client, keys: keys}
}

func (p *RedisKeyProvider) Name() string { return p.name }

func (p *RedisKeyProvider) Metadata(ctx context.Context, _ *pipeline.RequestContext) (map[string]any, error) {
	if len(p.keys) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(p.keys))
	keys := make([]string, 0, len(p.keys))
	for name, key := range p.keys {
		names = append(names, name)
		keys = append(keys, key)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values))
	for i, v := range values {
		if v != nil && i < len(names) {
			out[names[i]] = v
		}
	}
	return out, nil
}
