package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

func routeWithLimit(prefix string, spec *config.RateLimitSpec) *config.Route {
	return &config.Route{Prefix: prefix, Kind: config.KindProxy, Target: "http://backend", RateLimit: spec}
}

func TestByRouteAllowsThenRejectsAfterQuota(t *testing.T) {
	spec := &config.RateLimitSpec{By: config.ByRoute, Requests: 2, Period: time.Minute, Status: 429, Message: "Too Many Requests"}
	e := NewEngine([]*config.Route{routeWithLimit("/api", spec)})

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d := e.Check(ctx, "/api", req)
		if !d.Allowed {
			t.Fatalf("request %d expected allowed", i)
		}
	}
	d := e.Check(ctx, "/api", req)
	if d.Allowed || d.Status != 429 {
		t.Fatalf("expected 3rd request to be rejected with 429, got %+v", d)
	}
}

func TestByHeaderMissingKeyDeny(t *testing.T) {
	spec := &config.RateLimitSpec{By: config.ByHeader, HeaderName: "X-API-Key", Requests: 5, Period: time.Minute, Status: 429, Message: "Too Many Requests", OnMissingKey: config.MissingKeyDeny}
	e := NewEngine([]*config.Route{routeWithLimit("/api", spec)})

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	d := e.Check(context.Background(), "/api", req)
	if d.Allowed {
		t.Fatal("expected missing header with on_missing_key=deny to be rejected")
	}
}

func TestByHeaderMissingKeyAllow(t *testing.T) {
	spec := &config.RateLimitSpec{By: config.ByHeader, HeaderName: "X-API-Key", Requests: 1, Period: time.Minute, Status: 429, Message: "Too Many Requests", OnMissingKey: config.MissingKeyAllow}
	e := NewEngine([]*config.Route{routeWithLimit("/api", spec)})

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	d := e.Check(context.Background(), "/api", req)
	if !d.Allowed {
		t.Fatal("expected missing header with on_missing_key=allow to pass through")
	}
}

func TestDistinctHeaderValuesHaveIndependentQuotas(t *testing.T) {
	spec := &config.RateLimitSpec{By: config.ByHeader, HeaderName: "X-API-Key", Requests: 1, Period: time.Minute, Status: 429, Message: "Too Many Requests", OnMissingKey: config.MissingKeyAllow}
	e := NewEngine([]*config.Route{routeWithLimit("/api", spec)})
	ctx := context.Background()

	reqA := httptest.NewRequest(http.MethodGet, "/api", nil)
	reqA.Header.Set("X-API-Key", "tenant-a")
	reqB := httptest.NewRequest(http.MethodGet, "/api", nil)
	reqB.Header.Set("X-API-Key", "tenant-b")

	if !e.Check(ctx, "/api", reqA).Allowed {
		t.Fatal("tenant-a first request should be allowed")
	}
	if !e.Check(ctx, "/api", reqB).Allowed {
		t.Fatal("tenant-b first request should be allowed despite tenant-a's quota being used")
	}
	if e.Check(ctx, "/api", reqA).Allowed {
		t.Fatal("tenant-a second request should be rejected")
	}
}

func TestRouteWithoutRateLimitAlwaysAllows(t *testing.T) {
	e := NewEngine([]*config.Route{{Prefix: "/open", Kind: config.KindProxy, Target: "http://backend"}})
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	for i := 0; i < 10; i++ {
		if !e.Check(context.Background(), "/open", req).Allowed {
			t.Fatal("route with no rate_limit configured should never reject")
		}
	}
}
