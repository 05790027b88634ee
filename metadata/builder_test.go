package metadata_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/apienvelope/config"
	"github.com/drblury/apienvelope/metadata"
	"github.com/drblury/apienvelope/scope"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("CEST", 2*60*60))

func newBuilder(settings config.Settings) *metadata.Builder {
	return metadata.NewBuilder(settings,
		metadata.WithClock(func() time.Time { return fixedNow }),
		metadata.WithRequestIDs(func() string { return "req-1" }),
		metadata.WithCorrelationIDs(func() string { return "generated" }),
	)
}

func TestBuildBasics(t *testing.T) {
	b := newBuilder(config.Default())
	req := httptest.NewRequest(http.MethodGet, "/users/42?x=1", nil)

	meta := b.Build(req, fixedNow.Add(-1500*time.Millisecond), false)

	assert.Equal(t, "req-1", meta.RequestID)
	assert.Equal(t, fixedNow.UTC(), meta.Timestamp)
	assert.Equal(t, time.UTC, meta.Timestamp.Location())
	assert.Equal(t, "/users/42", meta.Path)
	assert.Equal(t, http.MethodGet, meta.Method)
	assert.Equal(t, "1.0", meta.Version)
	require.NotNil(t, meta.ExecutionTimeMs)
	assert.EqualValues(t, 1500, *meta.ExecutionTimeMs)
	assert.Equal(t, "generated", meta.CorrelationID)
	assert.Nil(t, meta.Query)
	assert.Nil(t, meta.Additional)
}

func TestBuildToggles(t *testing.T) {
	settings := config.Default()
	settings.ExecutionTime = false
	settings.CorrelationID = false
	settings.QueryStats = false

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := scope.New(fixedNow)
	s.RecordQuery("SELECT 1", time.Millisecond)
	req = req.WithContext(scope.WithScope(req.Context(), s))

	meta := newBuilder(settings).Build(req, fixedNow, false)

	assert.Nil(t, meta.ExecutionTimeMs)
	assert.Empty(t, meta.CorrelationID)
	assert.Nil(t, meta.Query)
}

func TestVersionResolution(t *testing.T) {
	b := newBuilder(config.Default())

	req := httptest.NewRequest(http.MethodGet, "/?api-version=2.0", nil)
	assert.Equal(t, "2.0", b.Build(req, time.Time{}, false).Version)

	req.Header.Set("X-API-Version", "3.0")
	assert.Equal(t, "3.0", b.Build(req, time.Time{}, false).Version)
}

func TestCorrelationResolution(t *testing.T) {
	b := newBuilder(config.Default())

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", b.Build(req, time.Time{}, false).CorrelationID)

	req.Header.Set("X-Correlation-ID", "inbound")
	assert.Equal(t, "inbound", b.Build(req, time.Time{}, false).CorrelationID)
}

func TestQueryStatsFromScope(t *testing.T) {
	s := scope.New(fixedNow)
	s.RecordQuery("SELECT 1", 4*time.Millisecond)
	s.RecordCacheHit()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(scope.WithScope(req.Context(), s))

	meta := newBuilder(config.Default()).Build(req, time.Time{}, false)
	require.NotNil(t, meta.Query)
	assert.Equal(t, 1, meta.Query.DatabaseQueriesCount)
	assert.Equal(t, 1, meta.Query.CacheHits)
	assert.Nil(t, meta.ExecutionTimeMs)
	assert.Equal(t, "req-1", s.RequestID())
}

func TestAdditionalCollectedOnFailure(t *testing.T) {
	b := newBuilder(config.Default())

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"a":1}`))
	req.RemoteAddr = "10.0.0.7:5555"
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("X-Custom-Tenant", "acme")
	req.Header.Set("X-Other", "ignored")
	s := scope.New(fixedNow)
	s.SetPrincipal("alice")
	req = req.WithContext(scope.WithScope(req.Context(), s))

	assert.Nil(t, b.Build(req, time.Time{}, false).Additional)

	extra := b.Build(req, time.Time{}, true).Additional
	assert.Equal(t, map[string]any{
		metadata.KeyPayloadSize: int64(7),
		metadata.KeyClientIP:    "10.0.0.7",
		metadata.KeyUserAgent:   "curl/8.0",
		"X-Custom-Tenant":       "acme",
		metadata.KeyUser:        "alice",
	}, extra)
}

func TestAdditionalBehindFlagOnSuccess(t *testing.T) {
	settings := config.Default()
	settings.AdditionalMetadata = true

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "probe")

	extra := newBuilder(settings).Build(req, time.Time{}, false).Additional
	assert.Equal(t, "probe", extra[metadata.KeyUserAgent])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", metadata.ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", metadata.ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", metadata.ClientIP(req))
}

func TestGeneratedIDs(t *testing.T) {
	a, b := metadata.NewRequestID(), metadata.NewRequestID()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
	_, err := ulid.Parse(a)
	assert.NoError(t, err)

	assert.Len(t, metadata.NewCorrelationID(), 36)
}

func TestNilRequest(t *testing.T) {
	meta := newBuilder(config.Default()).Build(nil, fixedNow, true)
	assert.Equal(t, "req-1", meta.RequestID)
	assert.Equal(t, "1.0", meta.Version)
}
