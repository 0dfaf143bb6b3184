// Package supervisor implements the Configuration Supervisor (spec.md
// §4.8, C8): the reload protocol shared by the file watcher and the
// admin endpoint, and the prober lifecycle that rides along with it.
// Grounded on the teacher's own startup sequence in
// internal/server/server.go (build dependencies, wire them into one
// long-lived state, start background goroutines) and on
// internal/config/watch.go's debounced fsnotify loop for the file side.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/chahine-tech/edgeproxy/internal/config"
	"github.com/chahine-tech/edgeproxy/internal/dispatcher"
	"github.com/chahine-tech/edgeproxy/internal/health"
	"github.com/chahine-tech/edgeproxy/internal/metrics"
)

// Supervisor owns the dispatcher, the active prober, and the reload
// protocol that replaces both together. Reload is safe to call
// concurrently from the file watcher and the admin endpoint; mu
// serializes steps 2-4 of §4.8 so two reloads never interleave.
type Supervisor struct {
	mu         sync.Mutex
	dispatcher *dispatcher.Dispatcher
	metrics    *metrics.Metrics
	metricsReg *prometheus.Registry
	log        zerolog.Logger

	configPath string
	watcher    *config.Watcher

	proberCancel context.CancelFunc
	proberDone   chan struct{}
}

// New loads the configuration at configPath, builds the dispatcher and
// the first prober, and starts watching the file for changes. It does
// not start the admin HTTP endpoint; serve AdminHandler for that. reg may
// be nil, in which case /-/metrics always reports 404 and no
// Prometheus series are collected.
func New(configPath string, log zerolog.Logger, reg *prometheus.Registry) (*Supervisor, error) {
	snap, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("supervisor: initial load: %w", err)
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	registry := health.NewRegistry(snap.AllBackends(), nil)
	d := dispatcher.New(snap, registry, log, m)

	s := &Supervisor{
		dispatcher: d,
		metrics:    m,
		metricsReg: reg,
		log:        log,
		configPath: configPath,
	}
	s.startProber(snap, registry)

	watcher, err := config.NewWatcher(configPath, log, s.onFileChanged)
	if err != nil {
		return nil, fmt.Errorf("supervisor: start file watcher: %w", err)
	}
	s.watcher = watcher

	return s, nil
}

// Dispatcher returns the supervised dispatcher, for wiring into the
// TCP/TLS/HTTP3 listeners.
func (s *Supervisor) Dispatcher() *dispatcher.Dispatcher { return s.dispatcher }

// Close stops the file watcher and the active prober.
func (s *Supervisor) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.stopProber()
}

func (s *Supervisor) onFileChanged() {
	snap, err := config.LoadFile(s.configPath)
	if err != nil {
		// §4.8 step 1: reject without touching current state; the
		// file-watcher path logs and retains the previous snapshot.
		s.log.Warn().Err(err).Str("path", s.configPath).Msg("config reload rejected, keeping previous snapshot")
		return
	}
	if err := s.Reload(snap); err != nil {
		s.log.Warn().Err(err).Msg("config reload failed")
	}
}

// Reload runs steps 2-4 of §4.8 against an already-validated snapshot:
// build the new health registry (carrying over records for surviving
// backends), publish it and the snapshot atomically, then restart the
// prober bound to the new snapshot.
func (s *Supervisor) Reload(snap *config.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevRegistry := s.dispatcher.HealthRegistry()
	registry := health.NewRegistry(snap.AllBackends(), prevRegistry)

	s.dispatcher.Swap(snap, registry)
	s.log.Info().Int("routes", len(snap.Routes)).Msg("configuration reloaded")

	s.stopProber()
	s.startProber(snap, registry)

	if s.metrics != nil {
		for _, b := range registry.Backends() {
			s.metrics.SetBackendHealth(b, registry.IsHealthy(b))
		}
	}
	return nil
}

func (s *Supervisor) startProber(snap *config.Snapshot, registry *health.Registry) {
	ctx, cancel := context.WithCancel(context.Background())
	s.proberCancel = cancel
	s.proberDone = make(chan struct{})

	prober := health.NewProber(registry, snap.HealthCheck, snap.BackendHealthPath, dispatcher.NewUpstreamTransport(), s.log, func(backend string, status health.Status) {
		if s.metrics != nil {
			s.metrics.SetBackendHealth(backend, status == health.Healthy)
		}
	})

	done := s.proberDone
	go func() {
		defer close(done)
		prober.Run(ctx)
	}()
}

func (s *Supervisor) stopProber() {
	if s.proberCancel == nil {
		return
	}
	s.proberCancel()
	<-s.proberDone
	s.proberCancel = nil
}
