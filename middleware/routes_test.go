package middleware

import "testing"

func TestRouteTableMatch(t *testing.T) {
	table := MustRouteTable(
		Route{Method: "post", Pattern: "/auth/login", Public: true},
		Route{Pattern: "/actuator/health", Public: true},
		Route{Pattern: "/admin/**", Authority: "ROLE_ADMIN"},
		Route{Pattern: "/static/*", Public: true},
	)

	tests := []struct {
		method, path string
		public       bool
		authority    string
		matched      bool
	}{
		{"POST", "/auth/login", true, "", true},
		{"GET", "/auth/login", false, "", false},
		{"GET", "/actuator/health", true, "", true},
		{"DELETE", "/actuator/health", true, "", true},
		{"GET", "/admin/users/1", false, "ROLE_ADMIN", true},
		{"GET", "/static/app.js", true, "", true},
		{"GET", "/static/js/app.js", false, "", false},
		{"GET", "/api/data", false, "", false},
		{"GET", "/", false, "", false},
	}

	for _, tt := range tests {
		route, ok := table.Match(tt.method, tt.path)
		if ok != tt.matched || route.Public != tt.public || route.Authority != tt.authority {
			t.Fatalf("%s %s: got %+v matched=%v", tt.method, tt.path, route, ok)
		}
		if route.RequiresAuth() == tt.public {
			t.Fatalf("%s %s: RequiresAuth inconsistent", tt.method, tt.path)
		}
	}
}

func TestRouteTableFirstMatchWins(t *testing.T) {
	table := MustRouteTable(
		Route{Pattern: "/api/public", Public: true},
		Route{Pattern: "/api/**"},
	)
	if r, _ := table.Match("GET", "/api/public"); !r.Public {
		t.Fatal("earlier public entry must win")
	}
	if r, _ := table.Match("GET", "/api/private"); r.Public {
		t.Fatal("later entry must apply to other paths")
	}
}

func TestNilRouteTableProtectsEverything(t *testing.T) {
	var table *RouteTable
	r, ok := table.Match("GET", "/anything")
	if ok || r.Public {
		t.Fatalf("nil table must protect, got %+v", r)
	}
	if table.Routes() != nil {
		t.Fatal("nil table has no routes")
	}
}

func TestNewRouteTableRejectsBadPatterns(t *testing.T) {
	if _, err := NewRouteTable(Route{Pattern: "  "}); err == nil {
		t.Fatal("expected error for empty pattern")
	}
	if _, err := NewRouteTable(Route{Pattern: "/a/[unterminated"}); err == nil {
		t.Fatal("expected error for bad glob")
	}
}

func TestRoutesReturnsCopy(t *testing.T) {
	table := MustRouteTable(Route{Pattern: "/x", Public: true})
	routes := table.Routes()
	routes[0].Public = false
	if r, _ := table.Match("GET", "/x"); !r.Public {
		t.Fatal("Routes must not alias table entries")
	}
}

func TestRouteTableNonCanonicalPathsAreNeverPublic(t *testing.T) {
	table := MustRouteTable(
		Route{Pattern: "/auth/**", Public: true},
		Route{Method: "GET", Pattern: "/actuator/health", Public: true},
		Route{Pattern: "/admin/**", Authority: "ROLE_ADMIN"},
	)

	tests := []struct {
		path      string
		public    bool
		authority string
	}{
		{"/auth/login", true, ""},
		{"/auth/login/", true, ""},
		{"/auth/../api/data", false, ""},
		{"/auth/./login", false, ""},
		{"//auth/login", false, ""},
		{"/auth/../../actuator/health", false, ""},
		{"/api/../auth/login", false, ""},
		{"/auth/../admin/users", false, "ROLE_ADMIN"},
	}

	for _, tt := range tests {
		route, _ := table.Match("GET", tt.path)
		if route.Public != tt.public || route.Authority != tt.authority {
			t.Fatalf("GET %s: got %+v, want public=%v authority=%q", tt.path, route, tt.public, tt.authority)
		}
	}
}
