// Command mockserver runs the multi-tenant HTTP mock server: the public
// mock surface, the inspector websocket, and the internal admin API,
// behind one process-wide router, per spec.md §6.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/benscrane/relay-sub000/internal/config"
	"github.com/benscrane/relay-sub000/internal/httpx"
	"github.com/benscrane/relay-sub000/internal/logging"
	"github.com/benscrane/relay-sub000/internal/metrics"
	"github.com/benscrane/relay-sub000/internal/tenant"
)

func main() {
	cfg := config.FromEnv()
	if cfg.InternalAuthSecret == "" {
		log.Fatal("INTERNAL_AUTH_SECRET is required")
	}

	logger := logging.New("system", cfg.LogLevel, cfg.LogFormat)
	m := metrics.New()

	registry := tenant.NewRegistry(tenant.RegistryConfig{
		StoreDialect:       cfg.StoreDialect,
		StoreDSNTemplate:   cfg.StoreDSN,
		RateLimitWindow:    cfg.RateLimitWindow,
		RulesCacheTTL:      cfg.RulesCacheTTL,
		LogLevel:           cfg.LogLevel,
		LogFormat:          cfg.LogFormat,
		InternalAuthSecret: cfg.InternalAuthSecret,
	}, m)

	s := &server{cfg: cfg, logger: logger, metrics: m, registry: registry}

	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler())
	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	router.PathPrefix("/").HandlerFunc(s.dispatch)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.WithContext(context.Background()).Infof("mockserver listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.WithContext(context.Background()).Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithContext(context.Background()).WithError(err).Warn("shutdown error")
	}
	registry.CloseAll()
	logger.WithContext(context.Background()).Info("stopped")
}

// server holds the process-wide dependencies the top-level router closes
// over; every request resolves its own tenant's Resources before doing any
// real work, per spec.md §2's "tenants do not share state".
type server struct {
	cfg      config.Config
	logger   *logging.Logger
	metrics  *metrics.Metrics
	registry *tenant.Registry
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatch implements spec.md §6's external-interface routing in one
// place: admin requests are detected and routed to that tenant's admin API
// first (spec.md §6's admin table has no public equivalent), then
// everything else goes through the single tenant-resolution precondition
// before reaching the engine or the inspector upgrade.
func (s *server) dispatch(w http.ResponseWriter, r *http.Request) {
	if name, remainder, ok := tenant.ResolveAdmin(r.Host, r.URL.Path); ok {
		res, err := s.registry.Get(r.Context(), name)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "failed to resolve tenant store")
			return
		}
		res.AdminRouter.ServeHTTP(w, withPath(r, remainder))
		return
	}

	name, remainder, err := tenant.Resolve(r.Host, r.URL.Path)
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	res, err := s.registry.Get(r.Context(), name)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to resolve tenant store")
		return
	}

	r = withPath(r, remainder)
	if isWebsocketUpgrade(r) {
		res.Hub.ServeWS(w, r)
		return
	}
	res.Engine.ServeHTTP(w, r)
}

func withPath(r *http.Request, path string) *http.Request {
	r2 := r.Clone(r.Context())
	r2.URL.Path = path
	r2.URL.RawPath = ""
	return r2
}

func isWebsocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket"
}
