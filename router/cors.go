package router

import (
	"net/http"
	"slices"
	"strings"

	"github.com/drblury/apienvelope/apierror"
	"github.com/drblury/apienvelope/responder"
)

// corsPolicy answers preflights for the configured origins. A preflight from
// any other origin is refused with 403, as a failure envelope when a
// responder is wired.
type corsPolicy struct {
	origins     []string
	methods     string
	headers     string
	credentials bool
	resp        *responder.Responder
}

func newCORSPolicy(cfg CORSConfig, resp *responder.Responder) *corsPolicy {
	return &corsPolicy{
		origins:     slices.Clone(cfg.Origins),
		methods:     strings.Join(cfg.Methods, ","),
		headers:     strings.Join(cfg.Headers, ","),
		credentials: cfg.AllowCredentials,
		resp:        resp,
	}
}

func (p *corsPolicy) allows(origin string) bool {
	return slices.Contains(p.origins, "*") || slices.Contains(p.origins, origin)
}

func (p *corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed := p.allows(origin)
		h := w.Header()
		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if p.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if !isPreflight(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			p.refuse(w, r, origin)
			return
		}
		h.Set("Access-Control-Allow-Methods", p.methods)
		h.Set("Access-Control-Allow-Headers", p.headers)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (p *corsPolicy) refuse(w http.ResponseWriter, r *http.Request, origin string) {
	if p.resp == nil {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	err := apierror.New(apierror.KindForbidden, "Cross-origin request refused.", "origin "+origin+" is not allowed")
	p.resp.HandleErrors(w, r, err, "cors preflight refused")
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}
