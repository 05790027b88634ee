package responder

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/drblury/apienvelope/envelope"
	"github.com/drblury/apienvelope/jsonutil"
	"github.com/drblury/apienvelope/metrics"
	"github.com/drblury/apienvelope/pipeline"
	"github.com/drblury/apienvelope/scope"
)

// Respond wraps payload in a success envelope and writes it with status 200.
func (r *Responder) Respond(w http.ResponseWriter, req *http.Request, payload any) {
	r.RespondWithJSON(w, req, http.StatusOK, payload)
}

// RespondWithJSON runs the success path for payload and writes the result
// with the supplied status code. A payload that already is an
// *envelope.Envelope is written as-is; excluded paths and types, and
// deployments with success wrapping disabled, get the raw payload.
func (r *Responder) RespondWithJSON(w http.ResponseWriter, req *http.Request, status int, v any) {
	if w == nil {
		return
	}
	ctx := requestContext(req)
	if r.abandoned(ctx, req) {
		return
	}
	begin := r.now()

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		r.metrics.Observe(metrics.OutcomeSuccess, "", status, r.now().Sub(begin))
		return
	}

	if env, ok := v.(*envelope.Envelope); ok && env != nil {
		env.Normalize()
		r.writeEnvelope(w, req, status, env, begin)
		return
	}

	if !r.settings.WrapSuccess || r.excludedPath(req) || r.settings.IsExcludedType(v) {
		r.respondRaw(w, req, status, v, begin)
		return
	}

	rc := pipeline.NewRequestContext(w, req)

	payload, err := r.pipeline.Transform(ctx, v, rc)
	if err != nil {
		r.failPipeline(w, req, err)
		return
	}

	var pageMeta *envelope.PaginationMetadata
	if r.settings.Pagination {
		if paginated, items, pm := r.detector.Detect(payload); paginated {
			payload, pageMeta = items, pm
		}
	}

	meta := r.meta.Build(req, r.started(req, begin), false)
	meta.Pagination = pageMeta
	env := envelope.Success(payload, "", meta)

	if err := r.pipeline.Enrich(ctx, env, rc); err != nil {
		r.failPipeline(w, req, err)
		return
	}
	if err := r.pipeline.Provide(ctx, env, rc); err != nil {
		r.failPipeline(w, req, err)
		return
	}
	rc.Commit(w)

	env.Normalize()
	r.writeEnvelope(w, req, status, env, begin)
}

// failPipeline reports an extension failure through the catch-all. Context
// errors are classified normally so deadlines still map to timeouts, and
// client cancellation drops the response.
func (r *Responder) failPipeline(w http.ResponseWriter, req *http.Request, err error) {
	var stageErr *pipeline.StageError
	r.fail(w, req, err, errors.As(err, &stageErr))
}

func (r *Responder) respondRaw(w http.ResponseWriter, req *http.Request, status int, v any, begin time.Time) {
	body, err := marshalPayload(v)
	if err != nil {
		r.logger().Log(requestContext(req), slog.LevelError, "failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	r.writeResponse(w, req, status, jsonContentType, body)
	r.metrics.Observe(metrics.OutcomePassthrough, "", status, r.now().Sub(begin))
}

func (r *Responder) writeEnvelope(w http.ResponseWriter, req *http.Request, status int, env *envelope.Envelope, begin time.Time) {
	body, err := marshalPayload(env)
	if err != nil {
		if env.Success {
			r.fail(w, req, &pipeline.StageError{Stage: "encode", Name: "envelope", Err: err}, true)
			return
		}
		r.logger().Log(requestContext(req), slog.LevelError, "failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	r.writeResponse(w, req, status, jsonContentType, body)

	outcome := metrics.OutcomeSuccess
	if !env.Success {
		outcome = metrics.OutcomeFailure
	}
	r.metrics.Observe(outcome, env.ErrorCode, status, r.now().Sub(begin))
}

func marshalPayload(payload any) ([]byte, error) {
	data, err := jsonutil.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return data, nil
}

// writeResponse logs write failures and never re-raises them; the status
// line is already on the wire at that point.
func (r *Responder) writeResponse(w http.ResponseWriter, req *http.Request, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		r.logger().Log(requestContext(req), slog.LevelError, "failed to write response", "error", err)
	}
}

// abandoned reports whether the client has gone away, in which case nothing
// is written.
func (r *Responder) abandoned(ctx context.Context, req *http.Request) bool {
	if !errors.Is(ctx.Err(), context.Canceled) {
		return false
	}
	r.logger().Log(ctx, slog.LevelDebug, "request cancelled, response dropped", "path", requestPath(req))
	return true
}

// started returns the scope start time when a boundary created one, else
// fallback.
func (r *Responder) started(req *http.Request, fallback time.Time) time.Time {
	if s, ok := scope.FromContext(requestContext(req)); ok {
		return s.Started()
	}
	return fallback
}

func (r *Responder) excludedPath(req *http.Request) bool {
	return r.settings.IsExcludedPath(requestPath(req))
}
