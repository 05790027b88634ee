package responder

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/drblury/apienvelope/apierror"
	"github.com/drblury/apienvelope/classifier"
	"github.com/drblury/apienvelope/envelope"
	"github.com/drblury/apienvelope/metrics"
	"github.com/drblury/apienvelope/pipeline"
)

// ProblemDetails aligns HTTP error responses with RFC 9457 problem documents.
// It is written instead of an envelope when error wrapping is disabled or the
// request path is excluded.
type ProblemDetails struct {
	Type      string   `json:"type,omitempty"`
	Title     string   `json:"title"`
	Status    int      `json:"status"`
	Detail    string   `json:"detail,omitempty"`
	Instance  string   `json:"instance,omitempty"`
	Code      string   `json:"code,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	TraceID   string   `json:"traceId,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// HandleErrors classifies err and writes a failure envelope. Expected
// categories are logged at info, everything else at error. Nothing is
// written when the client has already gone away.
func (r *Responder) HandleErrors(w http.ResponseWriter, req *http.Request, err error, msgs ...string) {
	r.fail(w, req, err, false, msgs...)
}

// HandleBadRequestError reports err as a 400 whose message is shown to the
// client.
func (r *Responder) HandleBadRequestError(w http.ResponseWriter, req *http.Request, err error, msgs ...string) {
	if err == nil {
		return
	}
	r.fail(w, req, apierror.Wrap(apierror.KindBadRequest, err, err.Error()), false, msgs...)
}

// HandleUnauthorizedError reports authentication failures using HTTP 401.
func (r *Responder) HandleUnauthorizedError(w http.ResponseWriter, req *http.Request, err error, msgs ...string) {
	if err == nil {
		return
	}
	r.fail(w, req, apierror.Wrap(apierror.KindUnauthorized, err, ""), false, msgs...)
}

// HandleInternalServerError reports err through the catch-all regardless of
// its category.
func (r *Responder) HandleInternalServerError(w http.ResponseWriter, req *http.Request, err error, msgs ...string) {
	r.fail(w, req, err, true, msgs...)
}

// fail is the failure path. Timing starts here, not at handler entry.
func (r *Responder) fail(w http.ResponseWriter, req *http.Request, err error, fallback bool, msgs ...string) {
	if err == nil || w == nil {
		return
	}
	ctx := requestContext(req)
	if r.abandoned(ctx, req) {
		return
	}
	begin := r.now()

	var res classifier.Result
	if fallback {
		res = r.classifier.Fallback(err)
	} else {
		res = r.classifier.Classify(err)
	}

	meta := r.meta.Build(req, begin, true)
	r.logFailure(req, res, err, meta.RequestID, msgs)

	if !r.settings.WrapErrors || r.excludedPath(req) {
		r.writeProblem(w, req, res, meta, begin)
		return
	}

	env := envelope.Failure(res.Code, res.Message, res.Errors, meta)
	rc := pipeline.NewRequestContext(w, req)
	for _, perr := range r.pipeline.ProvideBestEffort(ctx, env, rc) {
		r.logger().Log(ctx, slog.LevelWarn, "metadata provider failed", "error", perr, "requestId", meta.RequestID)
	}
	rc.Commit(w)
	env.Normalize()
	r.writeEnvelope(w, req, res.Status, env, begin)
}

func (r *Responder) logFailure(req *http.Request, res classifier.Result, err error, requestID string, msgs []string) {
	level := slog.LevelInfo
	if res.LogAsError {
		level = slog.LevelError
	}
	logger := r.logger().With(
		"error", err.Error(),
		"requestId", requestID,
		"status", res.Status,
		"errorCode", res.Code,
		"category", res.Category,
	)
	if len(msgs) > 0 {
		logger = logger.With("logMessages", msgs)
	}
	logger.Log(requestContext(req), level, r.statusMetaFor(res.Status).logMsg)
}

func (r *Responder) writeProblem(w http.ResponseWriter, req *http.Request, res classifier.Result, meta *envelope.ResponseMetadata, begin time.Time) {
	sm := r.statusMetaFor(res.Status)
	problem := ProblemDetails{
		Type:      sm.typeURI,
		Title:     sm.title,
		Status:    res.Status,
		Detail:    res.Message,
		Instance:  requestInstance(req),
		Code:      res.Code,
		Errors:    res.Errors,
		TraceID:   meta.RequestID,
		Timestamp: meta.Timestamp.Format(time.RFC3339),
	}
	body, err := marshalPayload(problem)
	if err != nil {
		r.logger().Log(requestContext(req), slog.LevelError, "failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	r.writeResponse(w, req, res.Status, problemContentType, body)
	r.metrics.Observe(metrics.OutcomeFailure, res.Code, res.Status, r.now().Sub(begin))
}
