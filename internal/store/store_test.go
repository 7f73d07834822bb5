package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/benscrane/relay-sub000/internal/model"
	"github.com/benscrane/relay-sub000/internal/store/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", "file::memory:?cache=shared", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateEndpointDuplicatePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateEndpoint(ctx, model.Endpoint{Path: "/users/:id", ResponseBody: "{}"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateEndpoint(ctx, model.Endpoint{Path: "/users/:id", ResponseBody: "{}"}); err != ErrDuplicatePath {
		t.Fatalf("expected ErrDuplicatePath, got %v", err)
	}
}

func TestListEndpointsOrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateEndpoint(ctx, model.Endpoint{Path: "/a", ResponseBody: "{}"})
	b, _ := s.CreateEndpoint(ctx, model.Endpoint{Path: "/b", ResponseBody: "{}"})

	list, err := s.ListEndpoints(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("expected creation order [a,b], got %+v", list)
	}
}

func TestDeleteEndpointCascadesRulesAndInvalidatesCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ep, _ := s.CreateEndpoint(ctx, model.Endpoint{Path: "/a", ResponseBody: "{}"})
	_, _ = s.CreateRule(ctx, model.Rule{EndpointID: ep.ID, ResponseBody: "{}", Active: true})

	// Warm the cache.
	if _, err := s.RulesForEndpoint(ctx, ep.ID); err != nil {
		t.Fatalf("rules for endpoint: %v", err)
	}

	if err := s.DeleteEndpoint(ctx, ep.ID); err != nil {
		t.Fatalf("delete endpoint: %v", err)
	}

	rules, err := s.ListRulesByEndpoint(ctx, ep.ID)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected rules cascaded away, got %+v", rules)
	}

	if _, ok := s.cache.get(ep.ID); ok {
		t.Fatal("expected rule cache invalidated on endpoint delete")
	}
}

func TestRulesForEndpointCacheInvalidatedOnMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ep, _ := s.CreateEndpoint(ctx, model.Endpoint{Path: "/a", ResponseBody: "{}"})
	r, _ := s.CreateRule(ctx, model.Rule{EndpointID: ep.ID, ResponseBody: "{}", Active: true, Priority: 1})

	first, err := s.RulesForEndpoint(ctx, ep.ID)
	if err != nil || len(first) != 1 {
		t.Fatalf("expected one rule, got %+v err=%v", first, err)
	}

	r.Priority = 99
	if _, err := s.UpdateRule(ctx, r); err != nil {
		t.Fatalf("update rule: %v", err)
	}

	second, err := s.RulesForEndpoint(ctx, ep.ID)
	if err != nil {
		t.Fatalf("rules for endpoint: %v", err)
	}
	if len(second) != 1 || second[0].Priority != 99 {
		t.Fatalf("expected cache invalidation to surface the update, got %+v", second)
	}
}

func TestInsertLogAndListOrderedDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ep, _ := s.CreateEndpoint(ctx, model.Endpoint{Path: "/a", ResponseBody: "{}"})
	base := time.Now().UTC()
	var ids []string
	for i := 0; i < 3; i++ {
		l, err := s.InsertLog(ctx, model.RequestLog{EndpointID: ep.ID, Method: "GET", Path: "/a", ResponseStatus: 200, Timestamp: base.Add(time.Duration(i) * time.Second)})
		if err != nil {
			t.Fatalf("insert log: %v", err)
		}
		ids = append(ids, l.ID)
	}

	logs, err := s.ListLogs(ctx, ep.ID, 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	if logs[0].ID != ids[2] || logs[1].ID != ids[1] || logs[2].ID != ids[0] {
		t.Fatalf("expected newest-first order %v, got %+v", []string{ids[2], ids[1], ids[0]}, logs)
	}
}

func TestClearLogsScopedAndTenantWide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ep, _ := s.CreateEndpoint(ctx, model.Endpoint{Path: "/a", ResponseBody: "{}"})
	_, _ = s.InsertLog(ctx, model.RequestLog{EndpointID: ep.ID, Method: "GET", Path: "/a", ResponseStatus: 200})

	if err := s.ClearLogs(ctx, ep.ID); err != nil {
		t.Fatalf("clear logs: %v", err)
	}
	logs, _ := s.ListLogs(ctx, "", 10)
	if len(logs) != 0 {
		t.Fatalf("expected logs cleared, got %d", len(logs))
	}

	other, _ := s.CreateEndpoint(ctx, model.Endpoint{Path: "/b", ResponseBody: "{}"})
	_, _ = s.InsertLog(ctx, model.RequestLog{EndpointID: ep.ID, Method: "GET", Path: "/a", ResponseStatus: 200})
	_, _ = s.InsertLog(ctx, model.RequestLog{EndpointID: other.ID, Method: "GET", Path: "/b", ResponseStatus: 200})

	if err := s.ClearLogs(ctx, ""); err != nil {
		t.Fatalf("clear logs tenant-wide: %v", err)
	}
	logs, _ = s.ListLogs(ctx, "", 10)
	if len(logs) != 0 {
		t.Fatalf("expected tenant-wide clear to remove every log, got %d", len(logs))
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateEndpoint(ctx, model.Endpoint{Path: "/a", ResponseBody: "{}"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := migrations.Apply(ctx, s.db, s.dialect); err != nil {
		t.Fatalf("re-applying migrations should be a no-op, got error: %v", err)
	}

	list, err := s.ListEndpoints(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected re-applying migrations to preserve existing data, got %+v", list)
	}
}

func TestMigrationsDropsLegacyMethodColumn(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", "file:legacy_schema_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `CREATE TABLE endpoints (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT 'GET',
		response_body TEXT NOT NULL DEFAULT '{}',
		status_code INTEGER NOT NULL DEFAULT 200,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		t.Fatalf("seed legacy schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO endpoints (id, path, method, created_at, updated_at) VALUES ('legacy-1', '/old', 'GET', '', '')`); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	droppedLegacy, err := migrations.Apply(ctx, db, "sqlite")
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if !droppedLegacy {
		t.Fatal("expected droppedLegacy=true when a legacy method column is present")
	}

	legacy, err := migrations.LegacyMethodColumnDetected(ctx, db, "sqlite")
	if err != nil {
		t.Fatalf("detect legacy schema: %v", err)
	}
	if legacy {
		t.Fatal("expected the method column gone after the drop-and-recreate")
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM endpoints`).Scan(&count); err != nil {
		t.Fatalf("count endpoints: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected legacy rows dropped along with the legacy table, got %d", count)
	}
}
