// Package pathmatch implements the narrow path-pattern matcher used to pick
// an endpoint or rule for an inbound request. Patterns support ":name"
// parameter segments only — no wildcards, no regex, no optional segments.
package pathmatch

import "strings"

// Normalize guarantees a leading slash, collapses runs of "/" into one, and
// strips a trailing slash except when the path is just "/".
func Normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = out[:len(out)-1]
	}
	return out
}

func segments(path string) []string {
	path = Normalize(path)
	if path == "/" {
		return nil
	}
	return strings.Split(strings.Trim(path, "/"), "/")
}

// Match compares a concrete, normalized path against a pattern that may
// contain ":name" segments. It returns the extracted path parameters on a
// full match. Segment counts must be equal; a literal segment must be
// byte-exact; duplicate parameter names overwrite earlier captures.
func Match(pattern, path string) (bool, map[string]string) {
	patSegs := segments(pattern)
	pathSegs := segments(path)
	if len(patSegs) != len(pathSegs) {
		return false, nil
	}

	var params map[string]string
	for i, seg := range patSegs {
		if strings.HasPrefix(seg, ":") {
			name := seg[1:]
			if name == "" {
				return false, nil
			}
			if params == nil {
				params = make(map[string]string, len(patSegs))
			}
			params[name] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return false, nil
		}
	}
	return true, params
}

// Specificity scores a pattern for disambiguation among multiple matching
// endpoints: 2 points per literal segment, 1 per parameter segment. It is
// used purely as a sort key, never for matching.
func Specificity(pattern string) int {
	score := 0
	for _, seg := range segments(pattern) {
		if strings.HasPrefix(seg, ":") {
			score++
		} else {
			score += 2
		}
	}
	return score
}
