package info

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestInfoHandler_GetStatus(t *testing.T) {
	handler := NewInfoHandler(WithInfoResponder(quietResponder()))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()

	handler.GetStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	payload := decodeProbePayload(t, rr.Body.Bytes())
	if payload.Status != "HEALTHY" {
		t.Fatalf("expected status HEALTHY, got %s", payload.Status)
	}
}

func TestInfoHandler_GetHealthz(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithLivenessChecks(Probe{Name: "loop", Check: func(context.Context) error { return nil }}),
		)
		rr := httptest.NewRecorder()

		handler.GetHealthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
		if payload := decodeProbePayload(t, rr.Body.Bytes()); payload.Status != "ok" {
			t.Fatalf("expected status ok, got %s", payload.Status)
		}
	})

	t.Run("failure is a service unavailable envelope", func(t *testing.T) {
		sentinel := errors.New("dial tcp 10.0.0.7:5432: connection refused")
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithLivenessChecks(Probe{Name: "postgres", Check: func(context.Context) error { return sentinel }}),
		)
		rr := httptest.NewRecorder()

		handler.GetHealthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assertProbeFailure(t, rr, []string{"Liveness check failed.", "postgres unavailable"}, sentinel)
	})
}

func TestInfoHandler_GetReadyz(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithReadinessChecks(Probe{Name: "cache", Check: func(context.Context) error { return nil }}),
		)
		rr := httptest.NewRecorder()

		handler.GetReadyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
		payload := decodeProbePayload(t, rr.Body.Bytes())
		if payload.Status != "ready" {
			t.Fatalf("expected status ready, got %s", payload.Status)
		}
		if !reflect.DeepEqual(payload.Checks, []string{"cache"}) {
			t.Fatalf("expected the passing probe to be listed, got %v", payload.Checks)
		}
	})

	t.Run("failure is a service unavailable envelope", func(t *testing.T) {
		sentinel := errors.New("cache warming")
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithReadinessChecks(Probe{Name: "search", Check: func(context.Context) error { return sentinel }}),
		)
		rr := httptest.NewRecorder()

		handler.GetReadyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assertProbeFailure(t, rr, []string{"Readiness check failed.", "search unavailable"}, sentinel)
	})

	t.Run("slow probe times out", func(t *testing.T) {
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithProbeTimeout(time.Millisecond),
			WithReadinessChecks(Probe{Name: "warehouse", Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}}),
		)
		rr := httptest.NewRecorder()

		handler.GetReadyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
		}
		env := decodeEnvelope[any](t, rr.Body.Bytes())
		if len(env.Errors) != 2 || !strings.HasPrefix(env.Errors[1], "warehouse timed out after") {
			t.Fatalf("expected the timed out probe to be named, got %v", env.Errors)
		}
	})
}

func assertProbeFailure(t *testing.T, rr *httptest.ResponseRecorder, details []string, cause error) {
	t.Helper()

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	env := decodeEnvelope[any](t, rr.Body.Bytes())
	if env.Success || env.ErrorCode != "SERVICE_UNAVAILABLE" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if !reflect.DeepEqual(env.Errors, details) {
		t.Fatalf("expected errors %q, got %v", details, env.Errors)
	}
	if strings.Contains(rr.Body.String(), cause.Error()) {
		t.Fatalf("probe cause leaked into response: %s", rr.Body.String())
	}
}

func TestInfoHandler_GetVersion(t *testing.T) {
	t.Run("uses configured provider", func(t *testing.T) {
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithInfoProvider(func() any {
				return map[string]string{"commit": "abc123"}
			}),
		)
		rr := httptest.NewRecorder()

		handler.GetVersion(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

		env := decodeEnvelope[map[string]string](t, rr.Body.Bytes())
		if env.Data["commit"] != "abc123" {
			t.Fatalf("expected commit abc123, got %v", env.Data)
		}
	})

	t.Run("nil payload becomes empty object", func(t *testing.T) {
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithInfoProvider(func() any { return nil }),
		)
		rr := httptest.NewRecorder()

		handler.GetVersion(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

		if !strings.Contains(rr.Body.String(), `"data":{}`) {
			t.Fatalf("expected empty data object, got %s", rr.Body.String())
		}
	})
}

func TestInfoHandler_GetOpenAPIJSON(t *testing.T) {
	t.Run("document is written raw", func(t *testing.T) {
		doc := `{"openapi":"3.0.3"}`
		handler := NewInfoHandler(
			WithInfoResponder(quietResponder()),
			WithSwaggerProvider(func() ([]byte, error) { return []byte(doc), nil }),
		)
		rr := httptest.NewRecorder()

		handler.GetOpenAPIJSON(rr, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

		if rr.Body.String() != doc {
			t.Fatalf("expected raw document, got %s", rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type %q", ct)
		}
	})

	t.Run("provider error is a catch-all envelope", func(t *testing.T) {
		handler := NewInfoHandler(WithInfoResponder(quietResponder()))
		rr := httptest.NewRecorder()

		handler.GetOpenAPIJSON(rr, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "not configured") {
			t.Fatalf("internal error leaked: %s", rr.Body.String())
		}
	})
}

func TestInfoHandler_Register(t *testing.T) {
	handler := NewInfoHandler(WithInfoResponder(quietResponder()))
	mux := http.NewServeMux()
	handler.Register(mux, "/info")

	for _, path := range []string{"/info/status", "/info/healthz", "/info/readyz", "/info/version"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusOK, rr.Code)
		}
	}
}
