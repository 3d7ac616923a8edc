// Package httpapi serves the remotesync HTTP API: health and metrics, sync
// triggers, the browser OAuth connect flow and the webhook and commit-status
// triggers used by the build system.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
	"github.com/custodia-labs/remotesync/internal/logger"
	"github.com/custodia-labs/remotesync/internal/metrics"
)

// CallbackPath is the OAuth redirect path of the browser connect flow.
const CallbackPath = "/oauth/callback"

// Config holds the services behind the API.
type Config struct {
	Sync     driving.SyncOrchestrator
	Accounts driving.AccountService
	Hooks    driving.HookService
	// BaseURL is the public URL of this server, used to build the OAuth
	// redirect URI. Empty derives it from the request.
	BaseURL string
}

// Server holds the handlers of the API.
type Server struct {
	sync     driving.SyncOrchestrator
	accounts driving.AccountService
	hooks    driving.HookService
	baseURL  string
	pending  *pendingAuth
}

// NewServer creates a server for cfg.
func NewServer(cfg Config) *Server {
	return &Server{
		sync:     cfg.Sync,
		accounts: cfg.Accounts,
		hooks:    cfg.Hooks,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		pending:  newPendingAuth(pendingTTL, time.Now),
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Post("/sync", s.handleSyncAccount)
		r.Get("/status", s.handleStatus)
		r.Delete("/", s.handleDisconnect)
	})
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/sync", s.handleSyncUser)
		r.Get("/accounts", s.handleListAccounts)
		r.Get("/repositories", s.handleRepositories)
		r.Get("/organizations", s.handleOrganizations)
	})

	r.Get("/connect/{appID}", s.handleConnect)
	r.Get(CallbackPath, s.handleCallback)

	r.Route("/projects/{projectID}/integrations/{integrationID}/webhook", func(r chi.Router) {
		r.Post("/", s.handleWebhookSetup)
		r.Put("/", s.handleWebhookUpdate)
		r.Post("/sync", s.handleProviderData)
	})
	r.Post("/builds/{buildID}/status", s.handleBuildStatus)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observe logs each request and counts it by route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

		l := logger.L()
		l.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
