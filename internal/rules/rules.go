// Package rules implements the rule matcher (C3): given an endpoint's rules
// and an inbound request, it picks the single winning rule or reports that
// none applies.
package rules

import (
	"net/http"
	"strings"

	"github.com/benscrane/relay-sub000/internal/model"
	"github.com/benscrane/relay-sub000/internal/pathmatch"
)

// Match is the outcome of rule selection: the winning rule (if any) and the
// path parameters in effect for it (the rule's own capture if its path
// pattern matched, otherwise the endpoint-level capture passed in).
type Match struct {
	Rule   *model.Rule
	Params map[string]string
}

// Select filters rules to those eligible for the request, then picks the
// highest-priority eligible rule, breaking ties by earliest creation time.
// endpointParams are the path parameters already extracted by the
// endpoint-level match; they apply unless a rule's own path pattern
// matches and supplies its own capture.
func Select(candidates []model.Rule, method, path string, header http.Header, endpointParams map[string]string) (Match, bool) {
	var best *model.Rule
	var bestParams map[string]string

	for i := range candidates {
		r := &candidates[i]
		if !r.Active {
			continue
		}
		if r.MatchMethod != "" && !strings.EqualFold(r.MatchMethod, method) {
			continue
		}

		params := endpointParams
		if r.MatchPath != "" {
			ok, captured := pathmatch.Match(r.MatchPath, path)
			if !ok {
				continue
			}
			params = captured
		}

		if !headersMatch(r.MatchHeaders, header) {
			continue
		}

		if best == nil || r.Priority > best.Priority ||
			(r.Priority == best.Priority && r.CreatedAt.Before(best.CreatedAt)) {
			best = r
			bestParams = params
		}
	}

	if best == nil {
		return Match{}, false
	}
	return Match{Rule: best, Params: bestParams}, true
}

func headersMatch(required map[string]string, actual http.Header) bool {
	for name, value := range required {
		if actual.Get(name) != value {
			return false
		}
	}
	return true
}
