package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// rawDoc mirrors the YAML top-level shape before route variants are
// resolved into their tagged Go structs (yaml.v3 has no serde-style
// internally-tagged enum support, so routes are decoded twice: once
// generically to read "type", once into the concrete Route fields).
type rawDoc struct {
	ListenAddr         string                     `yaml:"listen_addr"`
	AdminAddr          string                     `yaml:"admin_addr"`
	Routes             map[string]yaml.Node       `yaml:"routes"`
	TLS                *TLSConfig                 `yaml:"tls"`
	HealthCheck        *HealthCheckConfig         `yaml:"health_check"`
	BackendHealthPaths map[string]string          `yaml:"backend_health_paths"`
	Protocols          ProtocolsConfig            `yaml:"protocols"`
}

type rawRoute struct {
	Type            string          `yaml:"type"`
	Root            string          `yaml:"root"`
	Target          string          `yaml:"target"`
	Status          int             `yaml:"status"`
	PathRewrite     string          `yaml:"path_rewrite"`
	Targets         []string        `yaml:"targets"`
	Strategy        string          `yaml:"strategy"`
	RequestHeaders  *HeaderActions  `yaml:"request_headers"`
	ResponseHeaders *HeaderActions  `yaml:"response_headers"`
	RequestBody     *BodyActions    `yaml:"request_body"`
	ResponseBody    *BodyActions    `yaml:"response_body"`
	RateLimit       *rawRateLimit   `yaml:"rate_limit"`
}

type rawRateLimit struct {
	By           string `yaml:"by"`
	HeaderName   string `yaml:"header_name"`
	Requests     uint64 `yaml:"requests"`
	Period       string `yaml:"period"`
	Status       int    `yaml:"status"`
	Message      string `yaml:"message"`
	Algorithm    string `yaml:"algorithm"`
	OnMissingKey string `yaml:"on_missing_key"`
}

// LoadFile parses and fully validates a YAML configuration file,
// returning a ready-to-publish Snapshot. It never mutates any
// existing, currently-installed Snapshot (§4.8 step 1).
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document into a Snapshot. Used
// by LoadFile and directly by the admin endpoint for its JSON body
// (JSON is a subset of the YAML object grammar yaml.v3 accepts, so a
// single decoder serves both per spec.md §6).
func Parse(data []byte) (*Snapshot, error) {
	var doc rawDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return buildSnapshot(doc)
}

func buildSnapshot(doc rawDoc) (*Snapshot, error) {
	snap := &Snapshot{
		ListenAddr:         doc.ListenAddr,
		AdminAddr:          doc.AdminAddr,
		Routes:             make(map[string]*Route, len(doc.Routes)),
		TLS:                doc.TLS,
		BackendHealthPaths: doc.BackendHealthPaths,
		Protocols:          doc.Protocols,
	}
	if doc.HealthCheck != nil {
		snap.HealthCheck = *doc.HealthCheck
	} else {
		snap.HealthCheck = DefaultHealthCheckConfig()
	}

	var errs []string
	for prefix, node := range doc.Routes {
		var rr rawRoute
		if err := node.Decode(&rr); err != nil {
			errs = append(errs, fmt.Sprintf("route %q: %v", prefix, err))
			continue
		}
		route, rerrs := buildRoute(prefix, rr)
		if len(rerrs) > 0 {
			errs = append(errs, rerrs...)
			continue
		}
		snap.Routes[prefix] = route
	}

	errs = append(errs, Validate(snap)...)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	snap.ordered = orderedRoutes(snap.Routes)
	return snap, nil
}

func buildRoute(prefix string, rr rawRoute) (*Route, []string) {
	var errs []string
	route := &Route{
		Prefix:          prefix,
		Kind:            RouteKind(rr.Type),
		Root:            rr.Root,
		Target:          rr.Target,
		Status:          rr.Status,
		PathRewrite:     rr.PathRewrite,
		Targets:         rr.Targets,
		Strategy:        LBStrategy(rr.Strategy),
		RequestHeaders:  rr.RequestHeaders,
		ResponseHeaders: rr.ResponseHeaders,
		RequestBody:     rr.RequestBody,
		ResponseBody:    rr.ResponseBody,
	}

	if route.Kind == KindRedirect && route.Status == 0 {
		route.Status = 302
	}
	if route.Kind == KindLoadBalance && route.Strategy == "" {
		route.Strategy = StrategyRoundRobin
	}

	if rr.RateLimit != nil {
		rl, rlErrs := buildRateLimit(prefix, rr.RateLimit)
		if len(rlErrs) > 0 {
			errs = append(errs, rlErrs...)
		} else {
			route.RateLimit = rl
		}
	}

	return route, errs
}

func buildRateLimit(prefix string, rr *rawRateLimit) (*RateLimitSpec, []string) {
	var errs []string
	spec := &RateLimitSpec{
		By:           RateLimitBy(rr.By),
		HeaderName:   rr.HeaderName,
		Requests:     rr.Requests,
		PeriodRaw:    rr.Period,
		Status:       rr.Status,
		Message:      rr.Message,
		Algorithm:    RateLimitAlgorithm(rr.Algorithm),
		OnMissingKey: MissingKeyPolicy(rr.OnMissingKey),
	}
	if spec.Status == 0 {
		spec.Status = 429
	}
	if spec.Message == "" {
		spec.Message = "Too Many Requests"
	}
	if spec.Algorithm == "" {
		spec.Algorithm = AlgoTokenBucket
	}
	if spec.OnMissingKey == "" {
		spec.OnMissingKey = MissingKeyAllow
	}

	if rr.Period != "" {
		d, err := time.ParseDuration(rr.Period)
		if err != nil {
			errs = append(errs, fmt.Sprintf("route %q rate_limit.period %q: %v", prefix, rr.Period, err))
		} else {
			spec.Period = d
		}
	}

	return spec, errs
}

// orderedRoutes returns routes sorted by descending prefix length,
// the order internal/router scans in for longest-prefix match.
func orderedRoutes(routes map[string]*Route) []*Route {
	out := make([]*Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Prefix) != len(out[j].Prefix) {
			return len(out[i].Prefix) > len(out[j].Prefix)
		}
		return out[i].Prefix < out[j].Prefix
	})
	return out
}

// ValidationError aggregates every validation failure found in a
// candidate snapshot, matching original_source's "collect all errors,
// report once" style (config/validation.rs).
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("config: %d validation error(s):\n", len(e.Errors))
	for i, s := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, s)
	}
	return msg
}
