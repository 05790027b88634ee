package info

import "net/http"

// GetStatus returns a simple health payload that can be used for lightweight diagnostics.
func (ih *InfoHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ih.serveProbes(w, r, nil, "HEALTHY", "")
}

// GetHealthz implements the liveness probe recommended for Kubernetes.
func (ih *InfoHandler) GetHealthz(w http.ResponseWriter, r *http.Request) {
	ih.serveProbes(w, r, ih.livenessChecks, "ok", "Liveness check failed.")
}

// GetReadyz implements the readiness probe recommended for Kubernetes.
func (ih *InfoHandler) GetReadyz(w http.ResponseWriter, r *http.Request) {
	ih.serveProbes(w, r, ih.readinessChecks, "ready", "Readiness check failed.")
}

// GetVersion returns the structure provided by the configured InfoProvider.
func (ih *InfoHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	payload := ih.infoProvider()
	if payload == nil {
		payload = map[string]string{}
	}
	ih.RespondWithJSON(w, r, http.StatusOK, payload)
}

// GetOpenAPIJSON streams the configured OpenAPI JSON document to the caller.
// The document is written as-is; only a failure is enveloped.
func (ih *InfoHandler) GetOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	bytes, err := ih.swaggerProvider()
	if err != nil {
		ih.HandleErrors(w, r, err, "failed to load swagger spec")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(bytes); err != nil {
		ih.Logger().Error("failed to write swagger response", "error", err)
	}
}

// Register mounts the endpoints on mux below prefix, e.g. "/info".
func (ih *InfoHandler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/status", ih.GetStatus)
	mux.HandleFunc("GET "+prefix+"/healthz", ih.GetHealthz)
	mux.HandleFunc("GET "+prefix+"/readyz", ih.GetReadyz)
	mux.HandleFunc("GET "+prefix+"/version", ih.GetVersion)
	mux.HandleFunc("GET "+prefix+"/openapi.json", ih.GetOpenAPIJSON)
}
