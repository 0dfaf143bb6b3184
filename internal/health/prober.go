package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

// Prober periodically probes every backend in a Registry and drives
// its hysteretic transitions, grounded on the teacher's
// ProxyManager.runHealthChecks/checkUpstream loop, generalized to the
// configurable healthy/unhealthy thresholds of spec.md §4.4 and the
// no-retry, no-backoff policy of original_source's HealthChecker: one
// failed probe counts as one failure.
type Prober struct {
	registry *Registry
	cfg      config.HealthCheckConfig
	paths    map[string]string // backend -> probe path override
	client   *http.Client
	log      zerolog.Logger

	onTransition func(backend string, status Status)

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProber builds a Prober bound to one snapshot's health-check
// configuration and backend set. It does not start probing until Run
// is called.
func NewProber(registry *Registry, cfg config.HealthCheckConfig, pathFor func(string) string, transport http.RoundTripper, log zerolog.Logger, onTransition func(string, Status)) *Prober {
	paths := make(map[string]string)
	for _, b := range registry.Backends() {
		paths[b] = pathFor(b)
	}
	return &Prober{
		registry: registry,
		cfg:      cfg,
		paths:    paths,
		client:   &http.Client{Timeout: cfg.Timeout(), Transport: transport},
		log:      log,
		onTransition: onTransition,
		stop:     make(chan struct{}),
	}
}

// Run starts the periodic probe loop and blocks until ctx is
// cancelled or Stop is called. It always finishes any in-flight probe
// round before returning (§5 "cancels cooperatively").
func (p *Prober) Run(ctx context.Context) {
	if !p.cfg.Enabled {
		return
	}
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval())
	defer ticker.Stop()

	p.probeAll(ctx)

	for {
		select {
		case <-ticker.C:
			p.probeAll(ctx)
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		}
	}
}

// Stop requests the probe loop to exit after its current round.
func (p *Prober) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Prober) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, backend := range p.registry.Backends() {
		wg.Add(1)
		go func(backend string) {
			defer wg.Done()
			p.probeOne(ctx, backend)
		}(backend)
	}
	wg.Wait()
}

// probeOne issues one GET and applies the result to the backend's
// Record. Probes for a single backend never overlap because probeAll
// waits for the previous round's goroutines before the next tick.
func (p *Prober) probeOne(ctx context.Context, backend string) {
	rec := p.registry.Record(backend)
	if rec == nil {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout())
	defer cancel()

	url := backend + p.paths[backend]
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		p.fail(backend, rec)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug().Str("backend", backend).Err(err).Msg("probe failed")
		p.fail(backend, rec)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if rec.OnOk(p.cfg.HealthyThreshold) {
			p.log.Info().Str("backend", backend).Msg("backend recovered")
			if p.onTransition != nil {
				p.onTransition(backend, Healthy)
			}
		}
		return
	}
	p.fail(backend, rec)
}

func (p *Prober) fail(backend string, rec *Record) {
	if rec.OnFail(p.cfg.UnhealthyThreshold) {
		p.log.Warn().Str("backend", backend).Msg("backend marked unhealthy")
		if p.onTransition != nil {
			p.onTransition(backend, Unhealthy)
		}
	}
}
