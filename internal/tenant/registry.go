package tenant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/benscrane/relay-sub000/internal/adminapi"
	"github.com/benscrane/relay-sub000/internal/engine"
	"github.com/benscrane/relay-sub000/internal/inspector"
	"github.com/benscrane/relay-sub000/internal/logging"
	"github.com/benscrane/relay-sub000/internal/metrics"
	"github.com/benscrane/relay-sub000/internal/ratelimit"
	"github.com/benscrane/relay-sub000/internal/store"
)

// Resources bundles the per-tenant objects the engine, inspector hub, and
// admin surface all hold a reference to, per spec.md §2's "engine is
// instantiated once per tenant" and "tenants do not share state". AdminRouter
// is built once so the process doesn't re-register admin routes on every
// request.
type Resources struct {
	Store       *store.Store
	Engine      *engine.Engine
	Hub         *inspector.Hub
	Limiter     *ratelimit.Limiter
	AdminRouter *mux.Router
}

// Registry lazily creates and caches one Resources bundle per tenant name,
// opening that tenant's isolated store on first use.
type Registry struct {
	dialect       string
	dsnTemplate   string
	rateWindow    time.Duration
	rulesCacheTTL time.Duration
	logLevel      string
	logFormat     string
	authSecret    string
	metrics       *metrics.Metrics

	mu        sync.Mutex
	resources map[string]*Resources
}

// RegistryConfig carries the subset of config.Config a Registry needs.
type RegistryConfig struct {
	StoreDialect       string
	StoreDSNTemplate   string
	RateLimitWindow    time.Duration
	RulesCacheTTL      time.Duration
	LogLevel           string
	LogFormat          string
	InternalAuthSecret string
}

// NewRegistry builds an empty Registry; m may be nil to disable metrics.
func NewRegistry(cfg RegistryConfig, m *metrics.Metrics) *Registry {
	return &Registry{
		dialect:       cfg.StoreDialect,
		dsnTemplate:   cfg.StoreDSNTemplate,
		rateWindow:    cfg.RateLimitWindow,
		rulesCacheTTL: cfg.RulesCacheTTL,
		logLevel:      cfg.LogLevel,
		logFormat:     cfg.LogFormat,
		authSecret:    cfg.InternalAuthSecret,
		metrics:       m,
		resources:     make(map[string]*Resources),
	}
}

// Get returns the tenant's Resources, opening its store on first access.
func (r *Registry) Get(ctx context.Context, tenantName string) (*Resources, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.resources[tenantName]; ok {
		return res, nil
	}

	dsn := r.dsnTemplate
	if strings.Contains(dsn, "%s") {
		dsn = fmt.Sprintf(dsn, tenantName)
	}

	logger := logging.New(tenantName, r.logLevel, r.logFormat)

	st, err := store.OpenWithCacheTTL(ctx, r.dialect, dsn, r.rulesCacheTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("open store for tenant %q: %w", tenantName, err)
	}

	limiter := ratelimit.New(r.rateWindow)
	hub := inspector.NewHub(tenantName, st, logger, r.metrics)
	eng := engine.New(tenantName, st, limiter, hub, logger, r.metrics)

	adminRouter := mux.NewRouter()
	adminapi.New(st, r.authSecret).Register(adminRouter.PathPrefix("/__internal").Subrouter())

	res := &Resources{Store: st, Engine: eng, Hub: hub, Limiter: limiter, AdminRouter: adminRouter}
	r.resources[tenantName] = res
	return res, nil
}

// CloseAll releases every tenant's store and rate limiter, for graceful
// shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.resources {
		res.Limiter.Close()
		res.Store.Close()
	}
}
