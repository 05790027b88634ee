package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/drblury/apienvelope/scope"
)

// accessLog writes one line per completed request. Inside a responder
// boundary the line carries the id of the envelope that was written, so a
// log entry can be matched with the body the client received.
type accessLog struct {
	logger *slog.Logger
	quiet  []string
	hidden []string
}

func newAccessLog(logger *slog.Logger, cfg Config) *accessLog {
	logger.Debug("access log configured",
		"quietdownRoutes", cfg.QuietdownRoutes,
		"hideHeaders", cfg.HideHeaders,
	)
	return &accessLog{
		logger: logger,
		quiet:  slices.Clone(cfg.QuietdownRoutes),
		hidden: slices.Clone(cfg.HideHeaders),
	}
}

func (l *accessLog) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(l.quiet, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		begin := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status(),
			"duration", time.Since(begin),
			"header", redactHeaders(r.Header, l.hidden),
		}
		if s, ok := scope.FromContext(r.Context()); ok && s.RequestID() != "" {
			attrs = append(attrs, "requestId", s.RequestID())
		}
		if r.ContentLength > 0 {
			attrs = append(attrs, "contentLength", r.ContentLength)
		}

		level := slog.LevelDebug
		if sw.status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		l.logger.Log(r.Context(), level, "request completed", attrs...)
	})
}

// statusWriter remembers the status code sent downstream.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.code == 0 {
		w.code = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		if w.code == 0 {
			w.code = http.StatusOK
		}
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

// redactHeaders returns a copy of src with the hidden headers replaced by
// their total length.
func redactHeaders(src http.Header, hidden []string) http.Header {
	headers := src.Clone()
	for _, name := range hidden {
		key := http.CanonicalHeaderKey(name)
		values, ok := headers[key]
		if !ok {
			continue
		}
		n := 0
		for _, v := range values {
			n += len(v)
		}
		headers[key] = []string{fmt.Sprintf("[REDACTED - %d bytes]", n)}
	}
	return headers
}
