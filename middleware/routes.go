package middleware

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Route is one entry of a [RouteTable].
//
// Pattern is a glob over the request path with '/' as separator: '*' matches
// within one segment, '**' across segments. For gRPC the pattern is matched
// against the full method name, e.g. "/grpc.health.v1.Health/*".
type Route struct {
	// Method restricts the route to one HTTP method. Empty matches any.
	Method  string
	Pattern string
	// Public routes bypass authentication entirely.
	Public bool
	// Authority, when set on a protected route, must be held by the principal.
	Authority string
}

// RequiresAuth reports whether the route needs a valid bearer token.
func (r Route) RequiresAuth() bool {
	return !r.Public
}

type compiledRoute struct {
	Route
	glob glob.Glob
}

// RouteTable classifies requests as public or protected. It is immutable
// after construction. Entries are evaluated in order and the first match
// wins; requests matching nothing are protected.
type RouteTable struct {
	routes []compiledRoute
}

// NewRouteTable compiles routes.
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	t := &RouteTable{routes: make([]compiledRoute, 0, len(routes))}
	for i, r := range routes {
		pattern := strings.TrimSpace(r.Pattern)
		if pattern == "" {
			return nil, fmt.Errorf("route %d: empty pattern", i)
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("route %d (%s): %w", i, pattern, err)
		}
		r.Pattern = pattern
		r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
		t.routes = append(t.routes, compiledRoute{Route: r, glob: g})
	}
	return t, nil
}

// MustRouteTable is NewRouteTable for static tables; it panics on error.
func MustRouteTable(routes ...Route) *RouteTable {
	t, err := NewRouteTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Match returns the first route matching method and p. ok is false when
// nothing matched; the returned Route is then the protected default.
//
// p is matched in cleaned form. A path that is not already clean ("..", ".",
// or repeated slashes) is never public, so "/auth/../api" cannot borrow the
// classification of "/auth/**". It keeps any Authority of the route its
// cleaned form matches.
func (t *RouteTable) Match(method, p string) (Route, bool) {
	cleaned, clean := canonical(p)
	if t != nil {
		for _, r := range t.routes {
			if r.Method != "" && r.Method != method {
				continue
			}
			if r.glob.Match(cleaned) {
				route := r.Route
				if !clean {
					route.Public = false
				}
				return route, true
			}
		}
	}
	return Route{Pattern: p}, false
}

// canonical returns the rooted, cleaned form of p and whether p was already
// in that form. One trailing slash is tolerated.
func canonical(p string) (string, bool) {
	cleaned := path.Clean("/" + strings.TrimPrefix(p, "/"))
	if p == cleaned || p == cleaned+"/" {
		return cleaned, true
	}
	return cleaned, false
}

// Routes returns a copy of the table entries in evaluation order.
func (t *RouteTable) Routes() []Route {
	if t == nil {
		return nil
	}
	out := make([]Route, len(t.routes))
	for i, r := range t.routes {
		out[i] = r.Route
	}
	return out
}
