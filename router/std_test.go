package router

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/drblury/apienvelope/apierror"
	"github.com/drblury/apienvelope/envelope"
	"github.com/drblury/apienvelope/jsonutil"
	"github.com/drblury/apienvelope/responder"
)

func TestNewAllowsMiddlewareOverride(t *testing.T) {
	var order []string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	mux := New(handler, WithMiddlewareChain(
		recordingMiddleware("one", &order),
		recordingMiddleware("two", &order),
	))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	expected := []string{"one-before", "two-before", "handler", "two-after", "one-after"}
	if !reflect.DeepEqual(order, expected) {
		t.Fatalf("unexpected middleware order: got %v, want %v", order, expected)
	}

	if rr.Code != http.StatusTeapot {
		t.Fatalf("unexpected response code: got %d want %d", rr.Code, http.StatusTeapot)
	}
}

func TestNewSupportsPrependAndAppendMiddlewares(t *testing.T) {
	var order []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusNoContent)
	})

	mux := New(
		handler,
		WithoutOpenAPIValidation(),
		WithoutCORSMiddleware(),
		WithoutTimeoutMiddleware(),
		WithoutLoggingMiddleware(),
		WithMiddlewares(recordingMiddleware("outer", &order)),
		WithTrailingMiddlewares(recordingMiddleware("inner", &order)),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	expected := []string{"outer-before", "inner-before", "handler", "inner-after", "outer-after"}
	if !reflect.DeepEqual(order, expected) {
		t.Fatalf("unexpected middleware order: got %v want %v", order, expected)
	}

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected response code: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestNewAppliesCORSEnforcementFromConfig(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux := New(
		handler,
		WithConfigMutator(func(cfg *Config) {
			cfg.CORS = CORSConfig{
				Origins:          []string{"https://example.com"},
				Methods:          []string{http.MethodGet, http.MethodPost},
				Headers:          []string{"Content-Type"},
				AllowCredentials: true,
			}
		}),
	)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status code: got %d want %d", rr.Code, http.StatusNoContent)
	}

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("unexpected access-control-allow-origin: got %q want %q", got, "https://example.com")
	}

	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST" {
		t.Fatalf("unexpected access-control-allow-methods: got %q want %q", got, "GET,POST")
	}

	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("unexpected access-control-allow-headers: got %q want %q", got, "Content-Type")
	}

	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("unexpected access-control-allow-credentials: got %q want %q", got, "true")
	}
}

func TestWithoutCORSMiddlewareSkipsHeaders(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux := New(
		handler,
		WithConfigMutator(func(cfg *Config) {
			cfg.CORS = CORSConfig{
				Origins: []string{"https://example.com"},
				Methods: []string{http.MethodGet},
				Headers: []string{"Authorization"},
			}
		}),
		WithoutCORSMiddleware(),
	)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected CORS headers to be skipped when middleware disabled")
	}

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status code: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestCORSRefusesPreflightFromUnknownOrigin(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	cors := WithConfigMutator(func(cfg *Config) {
		cfg.CORS = CORSConfig{Origins: []string{"https://example.com"}, Methods: []string{http.MethodGet}}
	})

	preflight := func() *http.Request {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://evil.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		return req
	}

	rr := httptest.NewRecorder()
	New(handler, cors, WithResponder(newQuietResponder()), WithoutLoggingMiddleware()).ServeHTTP(rr, preflight())
	if called {
		t.Fatal("refused preflight must not reach the handler")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
	if env := decodeEnvelope(t, rr); env.Success || env.ErrorCode != "FORBIDDEN" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("refused origin was echoed: %q", got)
	}

	rr = httptest.NewRecorder()
	New(handler, cors, WithoutLoggingMiddleware()).ServeHTTP(rr, preflight())
	if rr.Code != http.StatusForbidden || strings.HasPrefix(rr.Body.String(), "{") {
		t.Fatalf("expected plain 403 without a responder, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestCORSPassesSimpleRequestsThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux := New(handler,
		WithConfigMutator(func(cfg *Config) { cfg.CORS = CORSConfig{Origins: []string{"*"}} }),
		WithoutLoggingMiddleware(),
	)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://any.test")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("OPTIONS without a requested method is not a preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://any.test" {
		t.Fatalf("unexpected access-control-allow-origin %q", got)
	}
}

func TestAccessLogCarriesEnvelopeRequestID(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	resp := responder.NewResponder(
		responder.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		responder.WithRequestIDs(func() string { return "01HREQ" }),
	)
	handler := resp.Handle(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return nil, apierror.NotFound("no such pet")
	})

	mux := New(handler,
		WithLogger(logger),
		WithResponder(resp),
		WithConfig(Config{HideHeaders: []string{"Authorization"}, QuietdownRoutes: []string{"/healthz"}}),
	)

	req := httptest.NewRequest(http.MethodGet, "/pets/7", nil)
	req.Header.Set("Authorization", "Bearer secret")
	mux.ServeHTTP(httptest.NewRecorder(), req)

	line := logs.String()
	for _, want := range []string{`"msg":"request completed"`, `"requestId":"01HREQ"`, `"status":404`, `[REDACTED - 13 bytes]`} {
		if !strings.Contains(line, want) {
			t.Fatalf("access log missing %s: %s", want, line)
		}
	}
	if strings.Contains(line, "secret") {
		t.Fatalf("hidden header leaked: %s", line)
	}

	logs.Reset()
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if strings.Contains(logs.String(), "request completed") {
		t.Fatalf("quiet route was logged: %s", logs.String())
	}
}

func TestAccessLogRaisesServerErrors(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	mux := New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), WithLogger(logger))

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(logs.String(), `"level":"WARN"`) || !strings.Contains(logs.String(), `"status":502`) {
		t.Fatalf("expected a warning for a 5xx response: %s", logs.String())
	}
}

func TestWrappedWritersForwardFlush(t *testing.T) {
	for name, w := range map[string]func(http.ResponseWriter) http.ResponseWriter{
		"validation": func(w http.ResponseWriter) http.ResponseWriter { return &validationWriter{ResponseWriter: w} },
		"status":     func(w http.ResponseWriter) http.ResponseWriter { return &statusWriter{ResponseWriter: w} },
	} {
		rr := httptest.NewRecorder()
		f, ok := w(rr).(http.Flusher)
		if !ok {
			t.Fatalf("%s writer does not implement http.Flusher", name)
		}
		f.Flush()
		if !rr.Flushed {
			t.Fatalf("%s writer did not forward Flush", name)
		}
	}
}

func TestTimeoutMiddlewareCanBeDisabled(t *testing.T) {
	longHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	withTimeout := New(
		longHandler,
		WithConfig(Config{Timeout: 1 * time.Millisecond}),
	)

	withoutTimeout := New(
		longHandler,
		WithConfig(Config{Timeout: 1 * time.Millisecond}),
		WithoutTimeoutMiddleware(),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rrTimeout := httptest.NewRecorder()
	withTimeout.ServeHTTP(rrTimeout, req)
	if rrTimeout.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected timeout handler to fire, got %d", rrTimeout.Code)
	}

	rrNoTimeout := httptest.NewRecorder()
	withoutTimeout.ServeHTTP(rrNoTimeout, req)
	if rrNoTimeout.Code != http.StatusOK {
		t.Fatalf("expected handler to complete when timeout disabled, got %d", rrNoTimeout.Code)
	}
}

func TestNewPanicsWhenHandlerNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when handler is nil")
		}
	}()

	New(nil)
}

const petsSpec = `
openapi: 3.0.3
info:
  title: pets
  version: "1.0"
paths:
  /pets:
    get:
      parameters:
        - name: limit
          in: query
          required: true
          schema:
            type: integer
      responses:
        "200":
          description: ok
`

func newQuietResponder() *responder.Responder {
	return responder.NewResponder(responder.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope.Envelope {
	t.Helper()
	var env envelope.Envelope
	if err := jsonutil.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, rr.Body.String())
	}
	return env
}

func TestOpenAPIValidationFailureIsEnveloped(t *testing.T) {
	swagger, err := openapi3.NewLoader().LoadFromData([]byte(petsSpec))
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}

	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	mux := New(handler,
		WithSwagger(swagger),
		WithResponder(newQuietResponder()),
		WithoutLoggingMiddleware(),
	)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pets", nil))

	if called {
		t.Fatal("handler must not run for an invalid request")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
	env := decodeEnvelope(t, rr)
	if env.Success || env.ErrorCode != "VALIDATION_ERROR" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(env.Errors) == 0 || !strings.Contains(env.Errors[0], "limit") {
		t.Fatalf("expected validator detail naming the parameter, got %v", env.Errors)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pets?limit=5", nil))
	if !called || rr.Code != http.StatusOK {
		t.Fatalf("valid request should reach the handler, got %d", rr.Code)
	}
}

func TestResponderTimeoutCancelsContext(t *testing.T) {
	resp := newQuietResponder()
	handler := resp.Handle(func(w http.ResponseWriter, r *http.Request) (any, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	})

	mux := New(handler,
		WithConfig(Config{Timeout: 5 * time.Millisecond}),
		WithResponder(resp),
		WithoutLoggingMiddleware(),
	)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusRequestTimeout {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusRequestTimeout)
	}
	if env := decodeEnvelope(t, rr); env.ErrorCode != "TIMEOUT" {
		t.Fatalf("unexpected code %q", env.ErrorCode)
	}
}

func TestResponderBoundaryRecoversPanics(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	mux := New(handler, WithResponder(newQuietResponder()), WithoutLoggingMiddleware())

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusInternalServerError)
	}
	env := decodeEnvelope(t, rr)
	if env.ErrorCode != "INTERNAL_ERROR" || strings.Contains(rr.Body.String(), "boom") {
		t.Fatalf("panic value leaked or wrong code: %s", rr.Body.String())
	}
}

func TestTimeoutMiddlewareKeepsDeadlineOnContext(t *testing.T) {
	var deadline bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	})

	timeoutMiddleware(time.Second, true)(handler).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))

	if !deadline {
		t.Fatal("expected the request context to carry a deadline")
	}
}

func TestValidationErrorMapping(t *testing.T) {
	resp := newQuietResponder()
	cases := map[int]int{
		http.StatusBadRequest:            http.StatusBadRequest,
		http.StatusUnauthorized:          http.StatusUnauthorized,
		http.StatusForbidden:             http.StatusForbidden,
		http.StatusNotFound:              http.StatusNotFound,
		http.StatusRequestEntityTooLarge: http.StatusRequestEntityTooLarge,
	}
	for in, want := range cases {
		if got := resp.Classifier().Classify(validationError(in, "detail")).Status; got != want {
			t.Fatalf("status %d classified as %d, want %d", in, got, want)
		}
	}
}

func recordingMiddleware(label string, sink *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*sink = append(*sink, label+"-before")
			next.ServeHTTP(w, r)
			*sink = append(*sink, label+"-after")
		})
	}
}
