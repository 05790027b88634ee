package info

import (
	"io"
	"log/slog"
	"testing"

	"github.com/drblury/apienvelope/envelope"
	"github.com/drblury/apienvelope/jsonutil"
	"github.com/drblury/apienvelope/responder"
)

func quietResponder() *responder.Responder {
	return responder.NewResponder(responder.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func decodeProbePayload(t *testing.T, body []byte) probeReport {
	t.Helper()

	env := decodeEnvelope[probeReport](t, body)
	if !env.Success {
		t.Fatalf("expected a success envelope, got %s", string(body))
	}
	return env.Data
}

func decodeEnvelope[T any](t *testing.T, body []byte) envelope.Typed[T] {
	t.Helper()

	var env envelope.Typed[T]
	if err := jsonutil.Unmarshal(body, &env); err != nil {
		t.Fatalf("failed to decode envelope: %v (body: %s)", err, string(body))
	}
	return env
}
