package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Route sends requests whose path starts with Prefix to Backend.
type Route struct {
	Prefix  string
	Backend string
}

// Router resolves request paths to backend names by longest prefix.
type Router struct {
	routes []Route
}

// NewRouter builds a router. Every route must name a known backend.
func NewRouter(routes []Route, known []string) (*Router, error) {
	backends := make(map[string]struct{}, len(known))
	for _, name := range known {
		backends[name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(routes))
	sorted := make([]Route, 0, len(routes))
	for _, r := range routes {
		if r.Prefix == "" || !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", r.Prefix)
		}
		if r.Backend == "" {
			return nil, errors.New("route backend is required")
		}
		if _, ok := backends[r.Backend]; !ok {
			return nil, fmt.Errorf("route %q references unknown backend %q", r.Prefix, r.Backend)
		}
		if _, ok := seen[r.Prefix]; ok {
			return nil, fmt.Errorf("duplicate route prefix %q", r.Prefix)
		}
		seen[r.Prefix] = struct{}{}
		sorted = append(sorted, r)
	}

	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &Router{routes: sorted}, nil
}

// Match returns the route for path. A prefix matches on a segment
// boundary, so /api/place does not match /api/places.
func (r *Router) Match(path string) (Route, bool) {
	for _, route := range r.routes {
		if matchesPrefix(path, route.Prefix) {
			return route, true
		}
	}
	return Route{}, false
}

func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) || strings.HasSuffix(prefix, "/") {
		return true
	}
	return path[len(prefix)] == '/'
}
