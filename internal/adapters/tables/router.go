package tables

import (
	"expvar"
	"net/http"

	"mobiletables/internal/core"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router mounts its routes on a mux router.
type Router interface {
	Register(r *mux.Router)
}

// RouterOptions configures NewRouter. Zero values disable the optional parts.
type RouterOptions struct {
	// Auth guards the /tables routes when non-nil.
	Auth *Authenticator
	// Gatherer backs /metrics when non-nil.
	Gatherer prometheus.Gatherer
	// DebugVars serves the expvar variables at /debug/vars when set.
	DebugVars bool
	// Extra routers, such as the export handler, mounted beside the tables.
	Extra []Router
}

// NewRouter composes the table routes, health check and metrics endpoint.
func NewRouter(svc *core.Service, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tables": svc.TableNames()})
	}).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if opts.DebugVars {
		r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
	}

	api := r.NewRoute().Subrouter()
	if opts.Auth != nil {
		api.Use(opts.Auth.Middleware)
	}
	NewHandler(svc).Register(api)
	for _, extra := range opts.Extra {
		extra.Register(api)
	}
	return r
}
