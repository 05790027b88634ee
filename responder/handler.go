package responder

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/drblury/apienvelope/scope"
)

// HandlerFunc returns the payload to wrap or the error to classify.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) (any, error)

type statusPayload struct {
	status  int
	payload any
}

// WithStatus makes a HandlerFunc respond with status instead of 200.
func WithStatus(status int, payload any) any {
	return statusPayload{status: status, payload: payload}
}

// PanicError carries a value recovered from a handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Handle adapts fn to http.Handler: a returned error takes the failure path,
// anything else the success path.
func (r *Responder) Handle(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		req = r.withScope(req)
		payload, err := fn(w, req)
		if err != nil {
			r.HandleErrors(w, req, err)
			return
		}
		status := http.StatusOK
		if sp, ok := payload.(statusPayload); ok {
			status, payload = sp.status, sp.payload
		}
		r.RespondWithJSON(w, req, status, payload)
	})
}

// Middleware is the request boundary. It opens the request scope used for
// timing and query statistics and turns panics into failure envelopes,
// provided nothing was written yet.
func (r *Responder) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			req = r.withScope(req)
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				perr := &PanicError{Value: rec, Stack: debug.Stack()}
				if tw.wroteHeader {
					r.logger().Error("panic after response started", "error", perr.Error(), "stack", string(perr.Stack))
					return
				}
				r.fail(tw, req, perr, true)
			}()
			next.ServeHTTP(tw, req)
		})
	}
}

func (r *Responder) withScope(req *http.Request) *http.Request {
	if _, ok := scope.FromContext(req.Context()); ok {
		return req
	}
	s := scope.New(r.now(), scope.WithQueryCapture(r.settings.QueryCapture()))
	return req.WithContext(scope.WithScope(req.Context(), s))
}

type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *trackingWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Flush marks the response as started; a flushed header can no longer be
// replaced by a failure envelope.
func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.wroteHeader = true
		f.Flush()
	}
}
