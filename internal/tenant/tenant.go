// Package tenant implements the single precondition spec.md §6 reduces
// host-routing policy to: resolve which tenant an inbound request belongs
// to, reject reserved names, and keep the internal admin surface
// unreachable from the public path.
package tenant

import (
	"errors"
	"strings"
)

// pathPrefix is the path-prefix deployment form: /m/{tenant}/REST.
const pathPrefix = "/m/"

// internalPrefix marks the admin surface, never reachable from the public
// mock surface (spec.md §6).
const internalPrefix = "/__internal/"

// reserved names are rejected upstream regardless of resolution strategy.
var reserved = map[string]struct{}{
	"www":   {},
	"api":   {},
	"app":   {},
	"admin": {},
	"mock":  {},
}

// ErrReserved is returned when the resolved tenant name is reserved.
var ErrReserved = errors.New("tenant: reserved name")

// ErrInternalPath is returned when the request, after tenant-prefix
// stripping, still targets the internal admin surface.
var ErrInternalPath = errors.New("tenant: internal path not reachable from public surface")

// ErrEmpty is returned when no tenant name could be resolved at all.
var ErrEmpty = errors.New("tenant: no tenant resolved")

// Resolve extracts the tenant name and the request's tenant-relative path.
// If the incoming path begins with "/m/{tenant}/", that segment is
// stripped and used as the tenant name; otherwise the host's leftmost
// label is used. The returned path always has a leading slash.
func Resolve(host, path string) (string, string, error) {
	if strings.HasPrefix(path, pathPrefix) {
		rest := strings.TrimPrefix(path, pathPrefix)
		idx := strings.Index(rest, "/")
		var name, remainder string
		if idx == -1 {
			name, remainder = rest, "/"
		} else {
			name, remainder = rest[:idx], rest[idx:]
		}
		return finish(name, remainder)
	}

	name := leftmostLabel(host)
	return finish(name, path)
}

func finish(name, remainder string) (string, string, error) {
	if name == "" {
		return "", "", ErrEmpty
	}
	if _, ok := reserved[strings.ToLower(name)]; ok {
		return "", "", ErrReserved
	}
	if remainder == "" {
		remainder = "/"
	}
	if strings.HasPrefix(remainder, internalPrefix) {
		return "", "", ErrInternalPath
	}
	return name, remainder, nil
}

// ResolveAdmin mirrors Resolve's tenant-extraction rules for the internal
// admin surface, which shares the same per-tenant store but is mounted
// directly at "/__internal/..." rather than behind the tenant's public
// path (spec.md §6's admin table has no tenant segment in its own right;
// the deployment still needs to know which tenant's store to operate on,
// so it resolves tenant the same way the public surface does, just
// without rejecting the internal prefix). ok is false if path isn't an
// admin request at all.
func ResolveAdmin(host, path string) (tenantName string, remainder string, ok bool) {
	if strings.HasPrefix(path, pathPrefix) {
		rest := strings.TrimPrefix(path, pathPrefix)
		idx := strings.Index(rest, "/")
		if idx == -1 {
			return "", "", false
		}
		name, remainder := rest[:idx], rest[idx:]
		if !strings.HasPrefix(remainder, internalPrefix) || name == "" {
			return "", "", false
		}
		if _, isReserved := reserved[strings.ToLower(name)]; isReserved {
			return "", "", false
		}
		return name, remainder, true
	}

	if !strings.HasPrefix(path, internalPrefix) {
		return "", "", false
	}
	name := leftmostLabel(host)
	if name == "" {
		return "", "", false
	}
	if _, isReserved := reserved[strings.ToLower(name)]; isReserved {
		return "", "", false
	}
	return name, path, true
}

func leftmostLabel(host string) string {
	host = strings.TrimSpace(host)
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	idx := strings.Index(host, ".")
	if idx == -1 {
		return host
	}
	return host[:idx]
}
