package pipeline

import (
	"context"
	"reflect"

	"github.com/drblury/apienvelope/envelope"
)

// EnricherFunc adapts a function to Enricher.
type EnricherFunc struct {
	Label string
	Rank  int
	Fn    func(ctx context.Context, env *envelope.Envelope, rc *RequestContext) error
}

func (f EnricherFunc) Order() int   { return f.Rank }
func (f EnricherFunc) Name() string { return f.Label }

func (f EnricherFunc) Enrich(ctx context.Context, env *envelope.Envelope, rc *RequestContext) error {
	return f.Fn(ctx, env, rc)
}

// ProviderFunc adapts a function to MetadataProvider.
type ProviderFunc struct {
	Label string
	Fn    func(ctx context.Context, rc *RequestContext) (map[string]any, error)
}

func (f ProviderFunc) Name() string { return f.Label }

func (f ProviderFunc) Metadata(ctx context.Context, rc *RequestContext) (map[string]any, error) {
	return f.Fn(ctx, rc)
}

// TransformFor returns a transformer applied to payloads of type T only.
func TransformFor[T any](name string, fn func(ctx context.Context, v T, rc *RequestContext) (any, error)) Transformer {
	return typedTransformer[T]{name: name, fn: fn}
}

type typedTransformer[T any] struct {
	name string
	fn   func(ctx context.Context, v T, rc *RequestContext) (any, error)
}

func (t typedTransformer[T]) Name() string { return t.name }

func (t typedTransformer[T]) CanTransform(typ reflect.Type) bool {
	return typ == reflect.TypeFor[T]()
}

func (t typedTransformer[T]) Transform(ctx context.Context, payload any, rc *RequestContext) (any, error) {
	return t.fn(ctx, payload.(T), rc)
}
