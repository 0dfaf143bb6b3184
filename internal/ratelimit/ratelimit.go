// Package ratelimit implements the Rate-Limit Engine (spec.md §4.3, C3).
// All three configured algorithms share one generalized-cell-rate core;
// this is grounded directly on original_source's use of the Rust
// `governor` crate (a GCRA implementation) for every one of its three
// algorithm names. The Go equivalent with the same GCRA-family
// semantics and its own per-key lazy-create/TTL-expire store is
// ulule/limiter/v3, one of the teacher's unwired go.mod dependencies.
package ratelimit

import (
	"context"
	"net/http"
	"unicode/utf8"

	"github.com/tomasen/realip"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

// Decision is the outcome of a Check call.
type Decision struct {
	Allowed bool
	Status  int
	Message string
}

var allowed = Decision{Allowed: true}

// routeLimiter pairs one route's compiled spec with its own limiter
// instance and backing store, so that quota never leaks across routes
// even when two routes happen to share a key (spec.md §4.3 "by=route:
// one non-keyed limiter per route").
type routeLimiter struct {
	spec *config.RateLimitSpec
	lim  *limiter.Limiter
}

// Engine holds one routeLimiter per route that declares a rate_limit.
// Routes without one are always allowed.
type Engine struct {
	byPrefix map[string]*routeLimiter
}

// NewEngine builds an Engine for a snapshot's routes. Each route gets a
// fresh in-memory store, so a reload always starts every limiter's
// quota clean rather than carrying over counters (unlike the health
// registry, the spec does not require rate-limit state to survive a
// reload).
func NewEngine(routes []*config.Route) *Engine {
	e := &Engine{byPrefix: make(map[string]*routeLimiter)}
	for _, r := range routes {
		if r.RateLimit == nil {
			continue
		}
		rate := limiter.Rate{
			Period: r.RateLimit.Period,
			Limit:  int64(r.RateLimit.Requests),
		}
		e.byPrefix[r.Prefix] = &routeLimiter{
			spec: r.RateLimit,
			lim:  limiter.New(memory.NewStore(), rate),
		}
	}
	return e
}

// Check resolves the request's key for the route at prefix and applies
// its quota. Routes with no configured rate_limit always allow.
func (e *Engine) Check(ctx context.Context, prefix string, r *http.Request) Decision {
	rl, ok := e.byPrefix[prefix]
	if !ok {
		return allowed
	}

	key, ok := resolveKey(prefix, rl.spec, r)
	if !ok {
		if rl.spec.OnMissingKey == config.MissingKeyDeny {
			return Decision{Status: rl.spec.Status, Message: rl.spec.Message}
		}
		return allowed
	}

	lctx, err := rl.lim.Get(ctx, key)
	if err != nil {
		// The store failed open rather than wedge the request pipeline;
		// spec.md §4.3 requires the engine never block.
		return allowed
	}
	if lctx.Reached {
		return Decision{Status: rl.spec.Status, Message: rl.spec.Message}
	}
	return allowed
}

// resolveKey computes the limiter key for one request, scoped to the
// route's prefix so identical keys on different routes never collide
// in a shared store.
func resolveKey(prefix string, spec *config.RateLimitSpec, r *http.Request) (string, bool) {
	switch spec.By {
	case config.ByIP:
		ip := realip.FromRequest(r)
		if ip == "" {
			return "", false
		}
		return prefix + "|ip|" + ip, true
	case config.ByHeader:
		v := r.Header.Get(spec.HeaderName)
		if v == "" || !utf8.ValidString(v) {
			return "", false
		}
		return prefix + "|hdr|" + v, true
	default: // ByRoute
		return prefix + "|route", true
	}
}
