package responder

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/drblury/apienvelope/classifier"
	"github.com/drblury/apienvelope/config"
	"github.com/drblury/apienvelope/metadata"
	"github.com/drblury/apienvelope/metrics"
	"github.com/drblury/apienvelope/pagination"
	"github.com/drblury/apienvelope/pipeline"
)

const (
	jsonContentType    = "application/json"
	problemContentType = "application/problem+json"
	statusDocBaseURL   = "https://httpstatuses.io"
)

// ResponderOption follows the functional options pattern used by NewResponder
// to configure optional collaborators.
type ResponderOption func(*Responder)

type statusMeta struct {
	typeURI string
	title   string
	logMsg  string
}

// StatusMetadata customises the problem document and log message used for a
// particular HTTP status when errors are not wrapped in envelopes.
type StatusMetadata struct {
	TypeURI string
	Title   string
	LogMsg  string
}

// Responder turns handler results and errors into envelopes. It owns the
// classifier, the metadata builder and the extension pipeline and is safe
// for concurrent use once constructed.
type Responder struct {
	log            *slog.Logger
	statusMetadata map[int]statusMeta
	settings       config.Settings
	now            func() time.Time

	classifier     *classifier.Classifier
	classifierOpts []classifier.Option
	detector       *pagination.Detector
	metrics        *metrics.Metrics

	pipelineOpts []pipeline.Option
	pipeline     *pipeline.Pipeline

	metaOpts []metadata.Option
	meta     *metadata.Builder
}

// NewResponder constructs a Responder with the default settings, classifier
// and the global slog logger. Use ResponderOption functions to override
// specific behaviours.
func NewResponder(opts ...ResponderOption) *Responder {
	r := &Responder{
		log:            slog.Default(),
		statusMetadata: make(map[int]statusMeta),
		settings:       config.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.classifier == nil {
		r.classifier = classifier.New(r.classifierOpts...)
	}
	if r.detector == nil {
		r.detector = pagination.NewDetector(nil)
	}
	r.pipeline = pipeline.New(r.pipelineOpts...)
	r.meta = metadata.NewBuilder(r.settings, append([]metadata.Option{metadata.WithClock(r.now)}, r.metaOpts...)...)
	return r
}

// WithLogger injects a custom slog logger for error reporting.
func WithLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithSettings replaces the default feature toggles.
func WithSettings(settings config.Settings) ResponderOption {
	return func(r *Responder) {
		r.settings = settings
	}
}

// WithClock replaces time.Now for timestamps and execution time. Tests use it
// to make envelopes deterministic.
func WithClock(now func() time.Time) ResponderOption {
	return func(r *Responder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(next func() string) ResponderOption {
	return func(r *Responder) {
		r.metaOpts = append(r.metaOpts, metadata.WithRequestIDs(next))
	}
}

// WithCorrelationIDs replaces the generator used for requests that carry no
// correlation id.
func WithCorrelationIDs(next func() string) ResponderOption {
	return func(r *Responder) {
		r.metaOpts = append(r.metaOpts, metadata.WithCorrelationIDs(next))
	}
}

// WithClassifier installs a fully configured classifier. WithMessageTable and
// WithRules are ignored when it is set.
func WithClassifier(c *classifier.Classifier) ResponderOption {
	return func(r *Responder) {
		r.classifier = c
	}
}

// WithMessageTable overrides default user messages key by key.
func WithMessageTable(table classifier.MessageTable) ResponderOption {
	return func(r *Responder) {
		r.classifierOpts = append(r.classifierOpts, classifier.WithMessageTable(table))
	}
}

// WithRules adds classification rules evaluated ahead of the defaults.
func WithRules(rules ...classifier.Rule) ResponderOption {
	return func(r *Responder) {
		r.classifierOpts = append(r.classifierOpts, classifier.WithRules(rules...))
	}
}

// WithDetector replaces the pagination detector.
func WithDetector(d *pagination.Detector) ResponderOption {
	return func(r *Responder) {
		r.detector = d
	}
}

// WithTransformers registers payload transformers in order.
func WithTransformers(ts ...pipeline.Transformer) ResponderOption {
	return func(r *Responder) {
		r.pipelineOpts = append(r.pipelineOpts, pipeline.WithTransformers(ts...))
	}
}

// WithEnrichers registers envelope enrichers.
func WithEnrichers(es ...pipeline.Enricher) ResponderOption {
	return func(r *Responder) {
		r.pipelineOpts = append(r.pipelineOpts, pipeline.WithEnrichers(es...))
	}
}

// WithMetadataProviders registers metadata providers.
func WithMetadataProviders(ps ...pipeline.MetadataProvider) ResponderOption {
	return func(r *Responder) {
		r.pipelineOpts = append(r.pipelineOpts, pipeline.WithProviders(ps...))
	}
}

// WithMetrics records every written response on m.
func WithMetrics(m *metrics.Metrics) ResponderOption {
	return func(r *Responder) {
		r.metrics = m
	}
}

// WithStatusMetadata overrides the problem document fields used for a
// specific HTTP status code.
func WithStatusMetadata(status int, meta StatusMetadata) ResponderOption {
	return func(r *Responder) {
		if r.statusMetadata == nil {
			r.statusMetadata = make(map[int]statusMeta)
		}
		r.statusMetadata[status] = normalizeStatusMeta(status, statusMeta{
			typeURI: meta.TypeURI,
			title:   meta.Title,
			logMsg:  meta.LogMsg,
		})
	}
}

// Logger returns the slog logger used internally by the responder.
func (r *Responder) Logger() *slog.Logger {
	return r.logger()
}

// Settings returns the active settings.
func (r *Responder) Settings() config.Settings {
	return r.settings
}

// Classifier returns the classifier used by the failure path.
func (r *Responder) Classifier() *classifier.Classifier {
	return r.classifier
}

func (r *Responder) logger() *slog.Logger {
	if r == nil || r.log == nil {
		return slog.Default()
	}
	return r.log
}

func (r *Responder) statusMetaFor(status int) statusMeta {
	meta, ok := r.statusMetadata[status]
	if !ok {
		meta = statusMeta{}
	}
	return normalizeStatusMeta(status, meta)
}

func normalizeStatusMeta(status int, meta statusMeta) statusMeta {
	if meta.title == "" {
		meta.title = http.StatusText(status)
	}
	if meta.logMsg == "" {
		meta.logMsg = meta.title
	}
	if meta.typeURI == "" {
		meta.typeURI = fmt.Sprintf("%s/%d", statusDocBaseURL, status)
	}
	return meta
}
