// Package router implements the longest-prefix-match routing table
// (spec.md §4.1). The matching rule operates on arbitrary string
// prefixes rather than path segments, so — unlike a segment trie — the
// table is kept as a slice sorted by descending prefix length and
// scanned linearly; route tables are operator-sized (tens to low
// hundreds of entries), not request-sized, so this stays well within
// the component's share of the implementation budget.
package router

import (
	"strings"
	"sync/atomic"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

// Stats mirrors the teacher's RouterStats: atomic counters safe to
// read without holding any lock.
type Stats struct {
	TotalLookups  uint64
	FailedLookups uint64
}

// Router holds one snapshot's worth of routes, pre-sorted by
// descending prefix length. A Router is immutable after New returns;
// a reload builds a fresh Router rather than mutating this one, which
// is what makes it safe to embed directly in a config.Snapshot's
// lifetime without its own locking.
type Router struct {
	routes []*config.Route

	totalLookups  atomic.Uint64
	failedLookups atomic.Uint64
}

// New builds a Router from a snapshot's already-ordered route list.
func New(ordered []*config.Route) *Router {
	return &Router{routes: ordered}
}

// Match returns the longest-prefix-matching route for p, or nil if no
// route's prefix matches. Because New receives routes pre-sorted by
// descending prefix length, the first match found is always the
// longest one (spec.md §4.1, §8 "Longest-prefix match" invariant).
func (r *Router) Match(p string) (string, *config.Route) {
	r.totalLookups.Add(1)
	for _, route := range r.routes {
		if matchesPrefix(route.Prefix, p) {
			return route.Prefix, route
		}
	}
	r.failedLookups.Add(1)
	return "", nil
}

// matchesPrefix reports whether prefix is a path-prefix of p. Root
// "/" matches everything; otherwise the trailing '/' of prefix (if
// any) is trimmed before the boundary test, consistent with
// checkPrefixConflicts' normalizePrefix, so "/assets/" matches
// "/assets/app.js" the same way "/assets" would. prefix must then
// match p exactly or be followed by '/' in p (so "/api" matches
// "/api" and "/api/v1" but not "/apiv2").
func matchesPrefix(prefix, p string) bool {
	if prefix == "/" {
		return true
	}
	prefix = strings.TrimRight(prefix, "/")
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}

// Stats returns a snapshot of the lookup counters.
func (r *Router) Stats() Stats {
	return Stats{
		TotalLookups:  r.totalLookups.Load(),
		FailedLookups: r.failedLookups.Load(),
	}
}
