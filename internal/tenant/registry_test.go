package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(RegistryConfig{
		StoreDialect:       "sqlite",
		StoreDSNTemplate:   "file:registry_%s?mode=memory&cache=shared",
		RateLimitWindow:    0,
		RulesCacheTTL:      0,
		LogLevel:           "error",
		LogFormat:          "text",
		InternalAuthSecret: "s3cret",
	}, nil)
}

func TestRegistryGetIsCachedAndIsolatedPerTenant(t *testing.T) {
	r := newTestRegistry(t)
	t.Cleanup(r.CloseAll)

	a1, err := r.Get(context.Background(), "acme")
	if err != nil {
		t.Fatalf("get acme: %v", err)
	}
	a2, err := r.Get(context.Background(), "acme")
	if err != nil {
		t.Fatalf("get acme again: %v", err)
	}
	if a1 != a2 {
		t.Fatal("expected the same Resources pointer on repeat Get")
	}

	b, err := r.Get(context.Background(), "globex")
	if err != nil {
		t.Fatalf("get globex: %v", err)
	}
	if b.Store == a1.Store {
		t.Fatal("expected distinct stores per tenant")
	}
}

func TestRegistryAdminRouterRequiresSecret(t *testing.T) {
	r := newTestRegistry(t)
	t.Cleanup(r.CloseAll)

	res, err := r.Get(context.Background(), "acme")
	if err != nil {
		t.Fatalf("get acme: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/__internal/endpoints", nil)
	rec := httptest.NewRecorder()
	res.AdminRouter.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/__internal/endpoints", nil)
	req2.Header.Set("X-Internal-Auth", "s3cret")
	rec2 := httptest.NewRecorder()
	res.AdminRouter.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct secret, got %d", rec2.Code)
	}
}
