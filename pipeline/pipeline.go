// Package pipeline runs the extension points that shape an envelope.
//
// Transformers reshape the payload before it is wrapped, enrichers
// post-process the assembled envelope in ascending Order, and metadata
// providers contribute keys to the additional map under a "name_" prefix.
// Stages run sequentially on the request goroutine and stop as soon as the
// request context is done.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sort"

	"github.com/drblury/apienvelope/envelope"
	"github.com/drblury/apienvelope/scope"
)

// RequestContext is what extensions see of the current request.
type RequestContext struct {
	Request *http.Request
	// Header stages response headers. Extensions edit this copy; Commit
	// moves it onto the response once every stage has succeeded, so a
	// failed pipeline leaves the real headers untouched.
	Header http.Header
	Scope  *scope.Scope
}

// NewRequestContext captures req and a copy of the response headers of w.
func NewRequestContext(w http.ResponseWriter, req *http.Request) *RequestContext {
	rc := &RequestContext{Request: req}
	if w != nil {
		rc.Header = w.Header().Clone()
	}
	if rc.Header == nil {
		rc.Header = make(http.Header)
	}
	if req != nil {
		rc.Scope, _ = scope.FromContext(req.Context())
	}
	return rc
}

// Commit replaces the response headers of w with the staged ones.
func (rc *RequestContext) Commit(w http.ResponseWriter) {
	if rc == nil || w == nil {
		return
	}
	dst := w.Header()
	for k := range dst {
		if _, ok := rc.Header[k]; !ok {
			delete(dst, k)
		}
	}
	for k, v := range rc.Header {
		dst[k] = v
	}
}

// Transformer reshapes success payloads.
type Transformer interface {
	CanTransform(t reflect.Type) bool
	Transform(ctx context.Context, payload any, rc *RequestContext) (any, error)
}

// Enricher post-processes an assembled envelope. Lower Order runs first.
type Enricher interface {
	Order() int
	Enrich(ctx context.Context, env *envelope.Envelope, rc *RequestContext) error
}

// MetadataProvider contributes keys to the additional metadata map.
type MetadataProvider interface {
	Name() string
	Metadata(ctx context.Context, rc *RequestContext) (map[string]any, error)
}

// Stage names used in StageError.
const (
	StageTransform = "transform"
	StageEnrich    = "enrich"
	StageProvide   = "provide"
)

// StageError reports a failing extension.
type StageError struct {
	Stage string
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Name, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransformers appends transformers in registration order.
func WithTransformers(ts ...Transformer) Option {
	return func(p *Pipeline) {
		for _, t := range ts {
			if t != nil {
				p.transformers = append(p.transformers, t)
			}
		}
	}
}

// WithEnrichers adds enrichers.
func WithEnrichers(es ...Enricher) Option {
	return func(p *Pipeline) {
		for _, e := range es {
			if e != nil {
				p.enrichers = append(p.enrichers, e)
			}
		}
	}
}

// WithProviders adds metadata providers.
func WithProviders(ps ...MetadataProvider) Option {
	return func(p *Pipeline) {
		for _, mp := range ps {
			if mp != nil {
				p.providers = append(p.providers, mp)
			}
		}
	}
}

// Pipeline holds the registered extensions. It is immutable after New and
// safe for concurrent use.
type Pipeline struct {
	transformers []Transformer
	enrichers    []Enricher
	providers    []MetadataProvider
}

// New builds a pipeline. Enrichers are sorted once, stably, by Order.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	sort.SliceStable(p.enrichers, func(i, j int) bool {
		return p.enrichers[i].Order() < p.enrichers[j].Order()
	})
	return p
}

// Empty reports whether no extension is registered.
func (p *Pipeline) Empty() bool {
	return p == nil || len(p.transformers)+len(p.enrichers)+len(p.providers) == 0
}

// Transform feeds payload through every transformer that accepts the type
// of the current value, each receiving the previous output.
func (p *Pipeline) Transform(ctx context.Context, payload any, rc *RequestContext) (any, error) {
	if p == nil {
		return payload, nil
	}
	for _, t := range p.transformers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !t.CanTransform(reflect.TypeOf(payload)) {
			continue
		}
		next, err := t.Transform(ctx, payload, rc)
		if err != nil {
			return nil, &StageError{Stage: StageTransform, Name: nameOf(t), Err: err}
		}
		payload = next
	}
	return payload, nil
}

// Enrich runs the enrichers in ascending Order. The first failure stops the
// chain.
func (p *Pipeline) Enrich(ctx context.Context, env *envelope.Envelope, rc *RequestContext) error {
	if p == nil {
		return nil
	}
	for _, e := range p.enrichers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Enrich(ctx, env, rc); err != nil {
			return &StageError{Stage: StageEnrich, Name: nameOf(e), Err: err}
		}
	}
	return nil
}

// Provide merges provider metadata into env, prefixing every key with the
// provider name and an underscore. Providers run in registration order.
func (p *Pipeline) Provide(ctx context.Context, env *envelope.Envelope, rc *RequestContext) error {
	if p == nil {
		return nil
	}
	for _, mp := range p.providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := mp.Metadata(ctx, rc)
		if err != nil {
			return &StageError{Stage: StageProvide, Name: mp.Name(), Err: err}
		}
		for k, v := range values {
			env.SetAdditional(mp.Name()+"_"+k, v)
		}
	}
	return nil
}

// ProvideBestEffort merges what it can and returns the provider failures
// instead of stopping at the first one. Used on the failure path.
func (p *Pipeline) ProvideBestEffort(ctx context.Context, env *envelope.Envelope, rc *RequestContext) []error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, mp := range p.providers {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		values, err := mp.Metadata(ctx, rc)
		if err != nil {
			errs = append(errs, &StageError{Stage: StageProvide, Name: mp.Name(), Err: err})
			continue
		}
		for k, v := range values {
			env.SetAdditional(mp.Name()+"_"+k, v)
		}
	}
	return errs
}

type named interface {
	Name() string
}

func nameOf(v any) string {
	if n, ok := v.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
