// Package config defines the proxy's configuration snapshot: the
// immutable value that the router, dispatcher, health registry, and
// rate limiter all read from for the lifetime of one request.
package config

import (
	"fmt"
	"time"
)

// RouteKind tags the closed set of route variants.
type RouteKind string

const (
	KindStatic      RouteKind = "static"
	KindRedirect    RouteKind = "redirect"
	KindProxy       RouteKind = "proxy"
	KindLoadBalance RouteKind = "load_balance"
)

// LBStrategy is the closed set of load-balancing strategies.
type LBStrategy string

const (
	StrategyRoundRobin LBStrategy = "round_robin"
	StrategyRandom     LBStrategy = "random"
)

// RateLimitBy selects the key the limiter partitions quota by.
type RateLimitBy string

const (
	ByRoute  RateLimitBy = "route"
	ByIP     RateLimitBy = "ip"
	ByHeader RateLimitBy = "header"
)

// RateLimitAlgorithm is the closed set of §4.3 algorithm labels. All
// three compile to the same GCRA core (internal/ratelimit); the engine
// does not read the label, so all three behave identically.
type RateLimitAlgorithm string

const (
	AlgoTokenBucket   RateLimitAlgorithm = "token_bucket"
	AlgoSlidingWindow RateLimitAlgorithm = "sliding_window"
	AlgoFixedWindow   RateLimitAlgorithm = "fixed_window"
)

// MissingKeyPolicy governs behavior when a limiter key cannot be
// extracted from a request (no remote IP, missing/non-UTF8 header).
type MissingKeyPolicy string

const (
	MissingKeyAllow MissingKeyPolicy = "allow"
	MissingKeyDeny  MissingKeyPolicy = "deny"
)

// RateLimitSpec is §3's Rate-Limit Spec.
type RateLimitSpec struct {
	By           RateLimitBy        `yaml:"by" json:"by"`
	HeaderName   string             `yaml:"header_name,omitempty" json:"header_name,omitempty"`
	Requests     uint64             `yaml:"requests" json:"requests"`
	Period       time.Duration      `yaml:"-" json:"-"`
	PeriodRaw    string             `yaml:"period" json:"period"`
	Status       int                `yaml:"status" json:"status"`
	Message      string             `yaml:"message" json:"message"`
	Algorithm    RateLimitAlgorithm `yaml:"algorithm" json:"algorithm"`
	OnMissingKey MissingKeyPolicy   `yaml:"on_missing_key" json:"on_missing_key"`
}

// RequestCondition gates a HeaderActions/BodyActions rule.
type RequestCondition struct {
	PathMatches string          `yaml:"path_matches,omitempty" json:"path_matches,omitempty"`
	MethodIs    string          `yaml:"method_is,omitempty" json:"method_is,omitempty"`
	HasHeader   *HeaderCondition `yaml:"has_header,omitempty" json:"has_header,omitempty"`
}

type HeaderCondition struct {
	Name         string `yaml:"name" json:"name"`
	ValueMatches string `yaml:"value_matches,omitempty" json:"value_matches,omitempty"`
}

// HeaderActions is §3's Header Actions / §4.6.
type HeaderActions struct {
	Add       map[string]string  `yaml:"add,omitempty" json:"add,omitempty"`
	Remove    []string           `yaml:"remove,omitempty" json:"remove,omitempty"`
	Condition *RequestCondition  `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// BodyActions is the SPEC_FULL §3 supplement carried over from
// original_source/src/config/models.rs. At most one of SetText/SetJSON
// is set.
type BodyActions struct {
	SetText   *string           `yaml:"set_text,omitempty" json:"set_text,omitempty"`
	SetJSON   interface{}       `yaml:"set_json,omitempty" json:"set_json,omitempty"`
	Condition *RequestCondition `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Route is the tagged variant of §3. Exactly one of the Static/
// Redirect/Proxy/LoadBalance fields is meaningful, selected by Kind.
type Route struct {
	Prefix string    `yaml:"-" json:"-"`
	Kind   RouteKind `yaml:"type" json:"type"`

	// Static
	Root string `yaml:"root,omitempty" json:"root,omitempty"`

	// Redirect
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
	Status int    `yaml:"status,omitempty" json:"status,omitempty"`

	// Proxy
	PathRewrite string `yaml:"path_rewrite,omitempty" json:"path_rewrite,omitempty"`

	// LoadBalance
	Targets  []string   `yaml:"targets,omitempty" json:"targets,omitempty"`
	Strategy LBStrategy `yaml:"strategy,omitempty" json:"strategy,omitempty"`

	// Proxy + LoadBalance
	RequestHeaders  *HeaderActions `yaml:"request_headers,omitempty" json:"request_headers,omitempty"`
	ResponseHeaders *HeaderActions `yaml:"response_headers,omitempty" json:"response_headers,omitempty"`
	RequestBody     *BodyActions   `yaml:"request_body,omitempty" json:"request_body,omitempty"`
	ResponseBody    *BodyActions   `yaml:"response_body,omitempty" json:"response_body,omitempty"`

	// All variants
	RateLimit *RateLimitSpec `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// HealthCheckConfig is §6's health_check block.
type HealthCheckConfig struct {
	Enabled             bool   `yaml:"enabled" json:"enabled"`
	IntervalSecs        uint64 `yaml:"interval_secs" json:"interval_secs"`
	TimeoutSecs         uint64 `yaml:"timeout_secs" json:"timeout_secs"`
	Path                string `yaml:"path" json:"path"`
	UnhealthyThreshold  uint32 `yaml:"unhealthy_threshold" json:"unhealthy_threshold"`
	HealthyThreshold    uint32 `yaml:"healthy_threshold" json:"healthy_threshold"`
}

func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{
		Enabled:            true,
		IntervalSecs:       10,
		TimeoutSecs:        2,
		Path:               "/health",
		UnhealthyThreshold: 3,
		HealthyThreshold:   2,
	}
}

func (h HealthCheckConfig) Interval() time.Duration { return time.Duration(h.IntervalSecs) * time.Second }
func (h HealthCheckConfig) Timeout() time.Duration  { return time.Duration(h.TimeoutSecs) * time.Second }

// AcmeConfig validates the shape of an ACME block; edgeproxy does not
// perform certificate acquisition itself (out of scope, spec.md §1).
type AcmeConfig struct {
	Enabled                bool     `yaml:"enabled" json:"enabled"`
	Domains                []string `yaml:"domains" json:"domains"`
	Email                  string   `yaml:"email" json:"email"`
	RenewalDaysBeforeExpiry *int    `yaml:"renewal_days_before_expiry,omitempty" json:"renewal_days_before_expiry,omitempty"`
	ChallengeDir           string   `yaml:"challenge_dir,omitempty" json:"challenge_dir,omitempty"`
}

// TLSConfig is §3/§6's tls block: either cert+key or ACME, not both.
type TLSConfig struct {
	CertPath string      `yaml:"cert_path,omitempty" json:"cert_path,omitempty"`
	KeyPath  string      `yaml:"key_path,omitempty" json:"key_path,omitempty"`
	ACME     *AcmeConfig `yaml:"acme,omitempty" json:"acme,omitempty"`
}

func (t *TLSConfig) usesACME() bool { return t != nil && t.ACME != nil }

// ProtocolsConfig is §6's protocols block.
type ProtocolsConfig struct {
	HTTP3Enabled bool `yaml:"http3_enabled" json:"http3_enabled"`
}

// Snapshot is §3's Configuration Snapshot: immutable once constructed.
type Snapshot struct {
	ListenAddr         string                       `yaml:"listen_addr" json:"listen_addr"`
	AdminAddr          string                       `yaml:"admin_addr,omitempty" json:"admin_addr,omitempty"`
	Routes             map[string]*Route            `yaml:"routes" json:"routes"`
	TLS                *TLSConfig                   `yaml:"tls,omitempty" json:"tls,omitempty"`
	HealthCheck        HealthCheckConfig            `yaml:"health_check" json:"health_check"`
	BackendHealthPaths map[string]string            `yaml:"backend_health_paths,omitempty" json:"backend_health_paths,omitempty"`
	Protocols          ProtocolsConfig              `yaml:"protocols" json:"protocols"`

	// ordered is the routes sorted by descending prefix length,
	// built once at construction time for the router (§4.1).
	ordered []*Route
}

// Ordered returns routes sorted by descending prefix byte-length, the
// order the router scans in for longest-prefix match.
func (s *Snapshot) Ordered() []*Route { return s.ordered }

// BackendHealthPath returns the configured per-backend probe path
// override, or the health_check default.
func (s *Snapshot) BackendHealthPath(backend string) string {
	if p, ok := s.BackendHealthPaths[backend]; ok && p != "" {
		return p
	}
	return s.HealthCheck.Path
}

// AllBackends returns the de-duplicated set of every backend URL
// referenced by any Proxy/LoadBalance route, in stable order.
func (s *Snapshot) AllBackends() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, r := range s.ordered {
		switch r.Kind {
		case KindProxy:
			add(r.Target)
		case KindLoadBalance:
			for _, t := range r.Targets {
				add(t)
			}
		}
	}
	return out
}

func (r *Route) String() string {
	return fmt.Sprintf("Route{prefix=%s kind=%s}", r.Prefix, r.Kind)
}
