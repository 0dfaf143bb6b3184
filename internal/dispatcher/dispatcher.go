// Package dispatcher implements the Request Dispatcher (spec.md §4.5,
// C7): the per-request pipeline that ties the router, rate limiter,
// health registry, and load balancer together against one immutable
// snapshot. Grounded on the teacher's ServerState.fallbackHandler
// (internal/server/server.go), generalized from a single hardcoded
// proxy fallback into the closed four-variant dispatch spec.md
// requires, with the teacher's atomic request/error counters promoted
// to real Prometheus metrics (internal/metrics).
package dispatcher

import (
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chahine-tech/edgeproxy/internal/config"
	"github.com/chahine-tech/edgeproxy/internal/health"
	"github.com/chahine-tech/edgeproxy/internal/lb"
	"github.com/chahine-tech/edgeproxy/internal/metrics"
	"github.com/chahine-tech/edgeproxy/internal/ratelimit"
	"github.com/chahine-tech/edgeproxy/internal/router"
)

// state is one atomically-swapped view of the world: a configuration
// snapshot plus everything built from it. A request that captures one
// state observes it end-to-end, satisfying spec.md §4.8's ordering
// guarantee.
type state struct {
	snapshot  *config.Snapshot
	router    *router.Router
	health    *health.Registry
	rateLimit *ratelimit.Engine
	balancers map[string]lb.Balancer
}

func newState(snap *config.Snapshot, healthRegistry *health.Registry) *state {
	balancers := make(map[string]lb.Balancer)
	for _, r := range snap.Ordered() {
		if r.Kind == config.KindLoadBalance {
			balancers[r.Prefix] = lb.New(r.Strategy)
		}
	}
	return &state{
		snapshot:  snap,
		router:    router.New(snap.Ordered()),
		health:    healthRegistry,
		rateLimit: ratelimit.NewEngine(snap.Ordered()),
		balancers: balancers,
	}
}

// Dispatcher is an http.Handler whose behavior is entirely determined
// by its current state, swapped atomically by the configuration
// supervisor on reload (spec.md §4.8 step 3, §5 "reader-biased shared
// handle").
type Dispatcher struct {
	current atomic.Pointer[state]
	client  *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New builds a Dispatcher bound to snap and healthRegistry. Call Swap
// to publish a later reload.
func New(snap *config.Snapshot, healthRegistry *health.Registry, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		client:  &http.Client{Transport: NewUpstreamTransport()},
		log:     log,
		metrics: m,
	}
	d.current.Store(newState(snap, healthRegistry))
	return d
}

// Swap publishes a new snapshot and health registry as the dispatcher's
// current view. It is the release half of spec.md §5's acquire/release
// pair; ServeHTTP's initial Load is the acquire.
func (d *Dispatcher) Swap(snap *config.Snapshot, healthRegistry *health.Registry) {
	d.current.Store(newState(snap, healthRegistry))
}

// Snapshot returns the currently published configuration snapshot, for
// callers (such as the CLI serve command) that need to inspect it
// without going through a request.
func (d *Dispatcher) Snapshot() *config.Snapshot {
	return d.current.Load().snapshot
}

// HealthRegistry returns the currently published health registry, used
// by the supervisor to seed a fresh prober after a reload.
func (d *Dispatcher) HealthRegistry() *health.Registry {
	return d.current.Load().health
}

// normalizePath applies one round of percent-decoding followed by
// path.Clean, the policy spec.md §9 leaves to the implementer and
// SPEC_FULL §10 commits to applying uniformly before §4.1 matching.
// An undecodable path is matched as-is rather than rejected outright.
func normalizePath(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	st := d.current.Load() // snapshot capture, spec.md §4.5 step 1

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	log := d.log.With().Str("request_id", requestID).Logger()

	prefix, route := st.router.Match(normalizePath(r.URL.Path)) // step 2
	if route == nil {
		d.recordAndRespond(w, r, "", start, http.StatusNotFound, "Not Found")
		return
	}

	decision := st.rateLimit.Check(r.Context(), prefix, r) // step 3
	if !decision.Allowed {
		log.Debug().Str("route", prefix).Msg("rate limited")
		d.recordAndRespond(w, r, prefix, start, decision.Status, decision.Message)
		return
	}

	rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	switch route.Kind { // step 4
	case config.KindStatic:
		d.serveStatic(rw, r, prefix, route)
	case config.KindRedirect:
		d.serveRedirect(rw, r, prefix, route)
	case config.KindProxy:
		d.serveProxy(rw, r, prefix, route.Target, route)
	case config.KindLoadBalance:
		d.serveLoadBalance(rw, r, prefix, route, st)
	default:
		d.writeError(rw, r, http.StatusInternalServerError, "Internal Server Error")
	}

	d.observe(prefix, r, rw.status, start)
	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("route", prefix).
		Int("status", rw.status).
		Dur("duration", time.Since(start)).
		Msg("request")
}

func (d *Dispatcher) recordAndRespond(w http.ResponseWriter, r *http.Request, route string, start time.Time, status int, message string) {
	http.Error(w, message, status)
	d.observe(route, r, status, start)
}

func (d *Dispatcher) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.status = status
	}
	http.Error(w, message, status)
}

func (d *Dispatcher) observe(route string, r *http.Request, status int, start time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.ObserveRequest(route, r.Method, status, time.Since(start))
}

// statusRecorder captures the status code a handler writes so
// ServeHTTP can log and record metrics after the fact without the
// handler plumbing the code back explicitly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
