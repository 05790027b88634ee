package info

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/drblury/apienvelope/apierror"
	"github.com/drblury/apienvelope/scope"
)

// ProbeTimingKey prefixes the request scope keys under which the duration of
// each probe is stored, e.g. "probe.postgres".
const ProbeTimingKey = "probe."

// probeReport is the data of a passing probe response. Checks names the
// probes that ran, in order.
type probeReport struct {
	Status string   `json:"status"`
	Checks []string `json:"checks,omitempty"`
}

// ProbeError reports the first probe that failed.
type ProbeError struct {
	Name    string
	Elapsed time.Duration
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.reason())
}

func (e *ProbeError) Unwrap() error { return e.Err }

// reason is the client-safe description of the failure.
func (e *ProbeError) reason() string {
	switch {
	case errors.Is(e.Err, context.DeadlineExceeded):
		return fmt.Sprintf("timed out after %s", e.Elapsed.Round(time.Millisecond))
	case errors.Is(e.Err, context.Canceled):
		return "cancelled"
	default:
		return "unavailable"
	}
}

// serveProbes runs probes and answers with a probeReport carrying state, or
// with a 503 envelope naming the failing probe.
func (ih *InfoHandler) serveProbes(w http.ResponseWriter, r *http.Request, probes []Probe, state, summary string) {
	names, err := ih.runProbes(r.Context(), probes)
	if err != nil {
		ih.HandleErrors(w, r, unavailable(summary, err), "probe failed")
		return
	}
	ih.RespondWithJSON(w, r, http.StatusOK, probeReport{Status: state, Checks: names})
}

// runProbes executes probes in order under one shared timeout and stops at
// the first failure. Each probe's duration is recorded on the request scope.
func (ih *InfoHandler) runProbes(ctx context.Context, probes []Probe) ([]string, error) {
	if len(probes) == 0 {
		return nil, nil
	}

	timeout := ih.probeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, hasScope := scope.FromContext(ctx)
	names := make([]string, 0, len(probes))
	for i, p := range probes {
		name := p.label(i)
		begin := time.Now()
		err := p.Check(ctx)
		elapsed := time.Since(begin)
		if hasScope {
			s.Set(ProbeTimingKey+name, elapsed)
		}
		if err != nil {
			return names, &ProbeError{Name: name, Elapsed: elapsed, Err: err}
		}
		names = append(names, name)
	}
	return names, nil
}

// unavailable keeps the probe error as the logged cause; the client sees
// summary and the failing probe's name.
func unavailable(summary string, err error) error {
	details := []string{summary}
	var pe *ProbeError
	if errors.As(err, &pe) {
		details = append(details, pe.Name+" "+pe.reason())
	}
	return apierror.New(apierror.KindServiceUnavailable, summary, details...).WithCause(err)
}

func filterProbes(probes []Probe) []Probe {
	var kept []Probe
	for _, p := range probes {
		if p.Check != nil {
			kept = append(kept, p)
		}
	}
	return kept
}
