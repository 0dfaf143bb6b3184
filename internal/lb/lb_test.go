package lb

import (
	"testing"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

func TestRoundRobinFairness(t *testing.T) {
	b := New(config.StrategyRoundRobin)
	targets := []string{"http://x", "http://y", "http://z"}

	counts := map[string]int{}
	const rounds = 4
	for i := 0; i < rounds*len(targets); i++ {
		counts[b.Next(targets)]++
	}
	for _, target := range targets {
		if counts[target] != rounds {
			t.Fatalf("expected %d selections of %s, got %d", rounds, target, counts[target])
		}
	}
}

func TestRoundRobinOrderAfterHealthFlap(t *testing.T) {
	// Targets [x, z] emulate y having been filtered out upstream by the
	// health registry (spec.md §8 scenario 2).
	b := New(config.StrategyRoundRobin)
	targets := []string{"http://x", "http://z"}

	var got []string
	for i := 0; i < 6; i++ {
		got = append(got, b.Next(targets))
	}
	want := []string{"http://x", "http://z", "http://x", "http://z", "http://x", "http://z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at index %d: expected %s, got %s (%v)", i, want[i], got[i], got)
		}
	}
}

func TestRandomStaysWithinTargets(t *testing.T) {
	b := New(config.StrategyRandom)
	targets := []string{"http://x", "http://y"}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[b.Next(targets)] = true
	}
	for target := range seen {
		if target != "http://x" && target != "http://y" {
			t.Fatalf("unexpected target %s", target)
		}
	}
}

func TestEmptyTargetsReturnsEmptyString(t *testing.T) {
	if got := New(config.StrategyRoundRobin).Next(nil); got != "" {
		t.Fatalf("expected empty string for no targets, got %q", got)
	}
	if got := New(config.StrategyRandom).Next(nil); got != "" {
		t.Fatalf("expected empty string for no targets, got %q", got)
	}
}
