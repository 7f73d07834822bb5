// Package engine implements the request handler (C6): the orchestrator that
// takes one inbound HTTP request for a tenant and drives it through path
// matching, rate limiting, rule selection, template rendering, logging, and
// broadcast, per spec.md §4.6.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benscrane/relay-sub000/internal/apierr"
	"github.com/benscrane/relay-sub000/internal/httpx"
	"github.com/benscrane/relay-sub000/internal/logging"
	"github.com/benscrane/relay-sub000/internal/metrics"
	"github.com/benscrane/relay-sub000/internal/model"
	"github.com/benscrane/relay-sub000/internal/pathmatch"
	"github.com/benscrane/relay-sub000/internal/ratelimit"
	"github.com/benscrane/relay-sub000/internal/rules"
	"github.com/benscrane/relay-sub000/internal/store"
	"github.com/benscrane/relay-sub000/internal/template"
)

// filteredHeaders lists infrastructure headers stripped before a request is
// persisted to the log (spec.md §6's "Filtered headers"). Every other
// header is preserved verbatim.
var filteredHeaders = map[string]struct{}{
	"cf-connecting-ip":   {},
	"cf-ipcountry":       {},
	"cf-ray":             {},
	"cf-visitor":         {},
	"cf-request-id":      {},
	"cf-warp-tag-id":     {},
	"cf-ew-via":          {},
	"cf-pseudo-ipv4":     {},
	"cf-connecting-ipv6": {},
	"x-forwarded-proto":  {},
	"x-forwarded-for":    {},
	"x-real-ip":          {},
	"cdn-loop":           {},
}

// Broadcaster is the narrow surface the engine needs from the inspector hub
// (C7), kept as an interface so the engine package does not import
// gorilla/websocket directly.
type Broadcaster interface {
	Broadcast(endpointID string, log model.RequestLog)
}

// Engine is one tenant's request handler, wired to that tenant's store,
// rate limiter, and inspector hub. writeMu gives the tenant its
// single-writer semantics (spec.md §5): the rate-limit-through-log-persist
// span of a request is serialized so two requests can never interleave
// their counter increment and log write, while the endpoint read that
// precedes it runs outside the lock. The rule read happens inside the
// span, served from the store's own cache when fresh.
type Engine struct {
	TenantID string
	Store    *store.Store
	Limiter  *ratelimit.Limiter
	Hub      Broadcaster
	Log      *logging.Logger
	Metrics  *metrics.Metrics

	writeMu sync.Mutex
}

// New builds an Engine for one tenant. metrics may be nil, in which case
// metric recording is skipped.
func New(tenantID string, st *store.Store, limiter *ratelimit.Limiter, hub Broadcaster, logger *logging.Logger, m *metrics.Metrics) *Engine {
	return &Engine{TenantID: tenantID, Store: st, Limiter: limiter, Hub: hub, Log: logger, Metrics: m}
}

// ServeHTTP implements the eleven-step request handler state machine of
// spec.md §4.6.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	// Step 1: read.
	body, _ := io.ReadAll(r.Body)
	method := r.Method
	path := pathmatch.Normalize(r.URL.Path)
	header := r.Header.Clone()

	// Step 3: endpoint selection.
	endpoints, err := e.Store.ListEndpoints(ctx)
	if err != nil {
		httpx.WriteAPIError(w, apierr.Internal("failed to list endpoints", err))
		return
	}

	ep, params, ok := selectEndpoint(endpoints, path)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	// Steps 4-9 are serialized per tenant (spec.md §5): the rate-limit
	// increment must be observed before its log entry is written, and two
	// requests can never interleave those steps. The lock is released
	// before the artificial delay, which must never block other requests.
	out, handled := e.handleLocked(ctx, w, ep, method, path, header, r.URL.Query(), body, params, start)
	if handled {
		return
	}

	// Step 10: delay.
	if out.delayMS > 0 {
		select {
		case <-time.After(time.Duration(out.delayMS) * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}

	// Step 11: return. Content-Type was seeded first inside handleLocked,
	// rule headers merged over it, and the rate-limit headers overlaid
	// last, per spec.md §4.6 step 6.
	for k, v := range out.headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(out.status)
	_, _ = w.Write([]byte(out.rendered))
}

// response carries everything ServeHTTP needs after the serialized section
// releases the lock: the headers are pre-merged in their required order so
// nothing here needs further layering.
type response struct {
	status   int
	headers  map[string]string
	rendered string
	delayMS  int
}

// handleLocked runs spec.md §4.6 steps 4-9 (rate limit, rule selection,
// template render, timing, log persist, broadcast enqueue) under the
// tenant's write lock. It writes a terminal response itself (404 is
// handled by the caller; 429 and 5xx are handled here) and reports whether
// ServeHTTP should return immediately.
func (e *Engine) handleLocked(ctx context.Context, w http.ResponseWriter, ep model.Endpoint, method, path string, header http.Header, query url.Values, body []byte, params map[string]string, start time.Time) (response, bool) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	// Step 4: rate limit.
	rl := e.Limiter.Check(ep.ID, ep.RateLimit)
	rateLimitHeaders := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(rl.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(rl.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(rl.ResetUnix, 10),
	}

	if !rl.Allowed {
		e.Log.LogRateLimitDenied(ctx, ep.ID, rl.Limit)
		if e.Metrics != nil {
			e.Metrics.RecordRateLimitDenial(e.TenantID, ep.ID)
		}
		for k, v := range rateLimitHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
		httpx.WriteAPIError(w, apierr.RateLimitExceeded(rl.Limit, rl.RetryAfterSeconds))
		return response{}, true
	}

	// Step 5: rule selection.
	ruleSet, err := e.Store.RulesForEndpoint(ctx, ep.ID)
	if err != nil {
		httpx.WriteAPIError(w, apierr.Internal("failed to load rules", err))
		return response{}, true
	}
	match, matched := rules.Select(ruleSet, method, path, header, params)

	// Step 6: response computation.
	status, respBody, delayMS, respHeaders, ruleID, ruleName, effectiveParams := resolveResponse(ep, match, matched, params)

	// Step 7: template render.
	tctx := template.Context{
		Method:      method,
		Path:        path,
		Header:      header,
		Query:       query,
		Body:        body,
		HasBody:     len(body) > 0,
		ContentType: header.Get("Content-Type"),
		Params:      effectiveParams,
	}
	rendered := template.Render(respBody, tctx)

	// Step 8: timing excludes the artificial delay.
	elapsed := time.Since(start)

	// Step 9: log, then broadcast.
	logEntry := model.RequestLog{
		EndpointID:      ep.ID,
		Method:          method,
		Path:            path,
		Headers:         marshalFilteredHeaders(header),
		Body:            bodyPointer(body),
		Timestamp:       time.Now().UTC(),
		MatchedRuleID:   ruleID,
		MatchedRuleName: ruleName,
		PathParams:      paramsPointer(effectiveParams),
		ResponseStatus:  status,
		ResponseTimeMS:  elapsed.Milliseconds(),
	}

	stored, err := e.Store.InsertLog(ctx, logEntry)
	if err != nil {
		httpx.WriteAPIError(w, apierr.Internal("failed to persist request log", err))
		return response{}, true
	}

	// Broadcast stays inside writeMu: a per-request goroutine here would
	// only serialize the increment/log-persist step, not the scheduling of
	// Hub.Broadcast itself, which could then land out of insertion order.
	if e.Hub != nil {
		e.safeBroadcast(ctx, ep.ID, stored)
	}

	e.Log.LogRequest(ctx, method, path, status, elapsed)
	if e.Metrics != nil {
		e.Metrics.RecordRequest(e.TenantID, status, elapsed)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range respHeaders {
		headers[k] = v
	}
	for k, v := range rateLimitHeaders {
		headers[k] = v
	}

	return response{status: status, headers: headers, rendered: rendered, delayMS: delayMS}, false
}

// safeBroadcast recovers from any panic in the hub's broadcast path so a
// slow or misbehaving inspector socket can never affect the response that
// ServeHTTP writes to the client afterwards (spec.md §4.6 step 9, §7).
func (e *Engine) safeBroadcast(ctx context.Context, endpointID string, l model.RequestLog) {
	defer func() {
		if r := recover(); r != nil {
			e.Log.LogBroadcastFailure(ctx, endpointID, errRecovered(r))
			if e.Metrics != nil {
				e.Metrics.RecordBroadcastFailure(e.TenantID)
			}
		}
	}()
	e.Hub.Broadcast(endpointID, l)
}

// selectEndpoint sorts candidates by specificity descending (ties broken by
// creation order via a stable sort over the already creation-ordered input)
// and returns the first whose pattern matches path.
func selectEndpoint(endpoints []model.Endpoint, path string) (model.Endpoint, map[string]string, bool) {
	candidates := make([]model.Endpoint, len(endpoints))
	copy(candidates, endpoints)
	sort.SliceStable(candidates, func(i, j int) bool {
		return pathmatch.Specificity(candidates[i].Path) > pathmatch.Specificity(candidates[j].Path)
	})

	for _, ep := range candidates {
		if ok, params := pathmatch.Match(ep.Path, path); ok {
			return ep, params, true
		}
	}
	return model.Endpoint{}, nil, false
}

// resolveResponse applies spec.md §4.6 step 6: rule values take effect on a
// match, the rule's own params replace the endpoint's, and the rate-limit
// headers are always overlaid last by the caller (never here).
func resolveResponse(ep model.Endpoint, match rules.Match, matched bool, endpointParams map[string]string) (status int, body string, delayMS int, headers map[string]string, ruleID, ruleName *string, params map[string]string) {
	if matched {
		r := match.Rule
		id := r.ID
		var name *string
		if r.Name != "" {
			n := r.Name
			name = &n
		}
		return r.ResponseStatus, r.ResponseBody, r.DelayMS, r.ResponseHeaders, &id, name, match.Params
	}
	return ep.StatusCode, ep.ResponseBody, ep.DelayMS, nil, nil, nil, endpointParams
}

func marshalFilteredHeaders(h http.Header) string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, filtered := filteredHeaders[strings.ToLower(k)]; filtered {
			continue
		}
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func bodyPointer(body []byte) *string {
	if len(body) == 0 {
		return nil
	}
	s := string(body)
	return &s
}

func paramsPointer(params map[string]string) *string {
	if len(params) == 0 {
		return nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func errRecovered(v interface{}) error { return fmt.Errorf("recovered panic: %v", v) }
