// Package lb implements the Load Balancer (spec.md §4.2, C5): given a
// list of targets already filtered down to the healthy set, return one
// target per call under a closed set of two strategies. Grounded on the
// teacher's proxy.Balancer interface and RoundRobinBalancer, trimmed to
// the two strategies config.LBStrategy admits and keyed per-route
// rather than per-balancer-instance to satisfy the stronger per-route
// fairness invariant (spec.md §8, §10).
package lb

import (
	"math/rand"
	"sync/atomic"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

// Balancer selects one of a non-empty, health-filtered target list.
// Implementations are safe for concurrent use.
type Balancer interface {
	Next(targets []string) string
}

// New returns the Balancer for strategy.
func New(strategy config.LBStrategy) Balancer {
	switch strategy {
	case config.StrategyRandom:
		return &random{}
	default:
		return &roundRobin{}
	}
}

// roundRobin hands out targets in order, wrapping with a monotonic
// counter so that over any n*|targets| consecutive calls each target is
// returned exactly n times (spec.md §8 "LB fairness").
type roundRobin struct {
	counter atomic.Uint64
}

func (b *roundRobin) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}
	n := b.counter.Add(1)
	return targets[(n-1)%uint64(len(targets))]
}

// random picks uniformly over targets. Package math/rand's global
// source is safe for concurrent use and needs no per-route state,
// unlike round-robin's counter.
type random struct{}

func (b *random) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}
	return targets[rand.Intn(len(targets))]
}
