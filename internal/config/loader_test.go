package config

import (
	"strings"
	"testing"
)

func TestParseMinimalStaticRoute(t *testing.T) {
	snap, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
routes:
  /:
    type: static
    root: "/var/www"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(snap.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(snap.Routes))
	}
	if snap.HealthCheck != DefaultHealthCheckConfig() {
		t.Fatalf("expected default health check config when omitted")
	}
}

func TestParseRedirectDefaultsStatusTo302(t *testing.T) {
	snap, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
routes:
  /old:
    type: redirect
    target: "https://example.com/new"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if snap.Routes["/old"].Status != 302 {
		t.Fatalf("expected default redirect status 302, got %d", snap.Routes["/old"].Status)
	}
}

func TestParseLoadBalanceDefaultsStrategyToRoundRobin(t *testing.T) {
	snap, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
routes:
  /api:
    type: load_balance
    targets: ["http://a", "http://b"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if snap.Routes["/api"].Strategy != StrategyRoundRobin {
		t.Fatalf("expected default strategy round_robin, got %q", snap.Routes["/api"].Strategy)
	}
}

func TestParseRejectsConflictingPrefixes(t *testing.T) {
	_, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
routes:
  /api:
    type: proxy
    target: "http://a"
  /api/v1:
    type: proxy
    target: "http://b"
`))
	if err == nil {
		t.Fatal("expected a validation error for conflicting prefixes")
	}
	if !strings.Contains(err.Error(), "conflicting prefixes") {
		t.Fatalf("expected conflicting prefixes error, got: %v", err)
	}
}

func TestParseRejectsUnknownRouteType(t *testing.T) {
	_, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
routes:
  /x:
    type: teleport
`))
	if err == nil {
		t.Fatal("expected an error for an unknown route type")
	}
}

func TestOrderedRoutesSortsByDescendingPrefixLength(t *testing.T) {
	snap, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
routes:
  /:
    type: static
    root: "/var/www"
  /api:
    type: proxy
    target: "http://a"
  /api/v1:
    type: proxy
    target: "http://b"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ordered := snap.Ordered()
	if len(ordered) != 3 {
		t.Fatalf("expected 3 routes, got %d", len(ordered))
	}
	if ordered[0].Prefix != "/api/v1" || ordered[1].Prefix != "/api" || ordered[2].Prefix != "/" {
		t.Fatalf("unexpected order: %v", []string{ordered[0].Prefix, ordered[1].Prefix, ordered[2].Prefix})
	}
}

func TestAllBackendsDeduplicatesAcrossRoutes(t *testing.T) {
	snap, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
routes:
  /a:
    type: proxy
    target: "http://shared"
  /b:
    type: load_balance
    targets: ["http://shared", "http://other"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	backends := snap.AllBackends()
	if len(backends) != 2 {
		t.Fatalf("expected 2 de-duplicated backends, got %v", backends)
	}
}

func TestBackendHealthPathFallsBackToDefault(t *testing.T) {
	snap, err := Parse([]byte(`
listen_addr: "127.0.0.1:8080"
backend_health_paths:
  "http://special": "/custom-health"
routes:
  /a:
    type: proxy
    target: "http://special"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := snap.BackendHealthPath("http://special"); got != "/custom-health" {
		t.Fatalf("expected override path, got %q", got)
	}
	if got := snap.BackendHealthPath("http://other"); got != DefaultHealthCheckConfig().Path {
		t.Fatalf("expected default health check path, got %q", got)
	}
}
