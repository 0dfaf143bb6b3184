package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Validate checks every invariant in spec.md §3 and returns the full
// list of violations (never just the first one), matching the
// collect-everything style of original_source's ConfigValidator.
func Validate(s *Snapshot) []string {
	var errs []string

	if _, _, err := net.SplitHostPort(s.ListenAddr); err != nil {
		errs = append(errs, fmt.Sprintf("listen_addr %q must be in IP:PORT form: %v", s.ListenAddr, err))
	}

	if len(s.Routes) == 0 {
		errs = append(errs, "routes must be non-empty")
	}
	for prefix, route := range s.Routes {
		errs = append(errs, validateRoute(prefix, route)...)
	}

	errs = append(errs, checkPrefixConflicts(s.Routes)...)

	if s.TLS != nil {
		errs = append(errs, validateTLS(s.TLS)...)
	}

	return errs
}

func validateRoute(prefix string, r *Route) []string {
	var errs []string

	if !strings.HasPrefix(prefix, "/") {
		errs = append(errs, fmt.Sprintf("route %q: path must start with '/'", prefix))
	}

	switch r.Kind {
	case KindStatic:
		if r.Root == "" {
			errs = append(errs, fmt.Sprintf("route %q: static route requires 'root'", prefix))
		}
	case KindRedirect:
		if !isValidRedirectStatus(r.Status) {
			errs = append(errs, fmt.Sprintf("route %q: redirect status %d must be one of 301,302,307,308", prefix, r.Status))
		}
		if strings.HasPrefix(r.Target, "http://") || strings.HasPrefix(r.Target, "https://") {
			if err := validateAbsoluteURL(r.Target); err != nil {
				errs = append(errs, fmt.Sprintf("route %q: redirect target: %v", prefix, err))
			}
		} else if r.Target == "" {
			errs = append(errs, fmt.Sprintf("route %q: redirect requires 'target'", prefix))
		}
	case KindProxy:
		if err := validateAbsoluteURL(r.Target); err != nil {
			errs = append(errs, fmt.Sprintf("route %q: proxy target: %v", prefix, err))
		}
		if r.PathRewrite != "" && !strings.HasPrefix(r.PathRewrite, "/") {
			errs = append(errs, fmt.Sprintf("route %q: path_rewrite must start with '/'", prefix))
		}
	case KindLoadBalance:
		if len(r.Targets) == 0 {
			errs = append(errs, fmt.Sprintf("route %q: load_balance requires a non-empty 'targets'", prefix))
		}
		for i, t := range r.Targets {
			if err := validateAbsoluteURL(t); err != nil {
				errs = append(errs, fmt.Sprintf("route %q: targets[%d]: %v", prefix, i, err))
			}
		}
		if r.Strategy != StrategyRoundRobin && r.Strategy != StrategyRandom {
			errs = append(errs, fmt.Sprintf("route %q: unknown strategy %q", prefix, r.Strategy))
		}
		if r.PathRewrite != "" && !strings.HasPrefix(r.PathRewrite, "/") {
			errs = append(errs, fmt.Sprintf("route %q: path_rewrite must start with '/'", prefix))
		}
	default:
		errs = append(errs, fmt.Sprintf("route %q: unknown type %q", prefix, r.Kind))
	}

	for _, b := range []*BodyActions{r.RequestBody, r.ResponseBody} {
		if b != nil && b.SetText != nil && b.SetJSON != nil {
			errs = append(errs, fmt.Sprintf("route %q: body actions may set only one of set_text and set_json", prefix))
		}
	}

	if r.RateLimit != nil {
		errs = append(errs, validateRateLimit(prefix, r.RateLimit)...)
	}

	return errs
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http:// or https://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q must have a host", raw)
	}
	return nil
}

func isValidRedirectStatus(code int) bool {
	switch code {
	case 301, 302, 307, 308:
		return true
	}
	return false
}

func validateRateLimit(prefix string, rl *RateLimitSpec) []string {
	var errs []string
	if rl.Requests == 0 {
		errs = append(errs, fmt.Sprintf("route %q: rate_limit.requests must be > 0", prefix))
	}
	if rl.PeriodRaw == "" || rl.Period <= 0 {
		errs = append(errs, fmt.Sprintf("route %q: rate_limit.period must be > 0", prefix))
	}
	if rl.Status < 400 || rl.Status > 599 {
		errs = append(errs, fmt.Sprintf("route %q: rate_limit.status %d must be a 4xx/5xx code", prefix, rl.Status))
	}
	switch rl.By {
	case ByRoute, ByIP:
	case ByHeader:
		if rl.HeaderName == "" {
			errs = append(errs, fmt.Sprintf("route %q: rate_limit.header_name is required when by=header", prefix))
		} else if !isValidHeaderName(rl.HeaderName) {
			errs = append(errs, fmt.Sprintf("route %q: rate_limit.header_name %q is not a valid header name", prefix, rl.HeaderName))
		}
	default:
		errs = append(errs, fmt.Sprintf("route %q: rate_limit.by %q must be one of route,ip,header", prefix, rl.By))
	}
	switch rl.Algorithm {
	case AlgoTokenBucket, AlgoSlidingWindow, AlgoFixedWindow:
	default:
		errs = append(errs, fmt.Sprintf("route %q: rate_limit.algorithm %q is unknown", prefix, rl.Algorithm))
	}
	switch rl.OnMissingKey {
	case MissingKeyAllow, MissingKeyDeny:
	default:
		errs = append(errs, fmt.Sprintf("route %q: rate_limit.on_missing_key %q must be allow or deny", prefix, rl.OnMissingKey))
	}
	return errs
}

var headerTokenRe = regexp.MustCompile(`^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+$`)

func isValidHeaderName(name string) bool {
	return name != "" && headerTokenRe.MatchString(name)
}

func validateTLS(t *TLSConfig) []string {
	var errs []string
	hasCertKey := t.CertPath != "" && t.KeyPath != ""
	hasACME := t.ACME != nil

	switch {
	case hasCertKey && hasACME:
		errs = append(errs, "tls: specify either cert_path+key_path or acme, not both")
	case hasCertKey:
		if _, err := os.Stat(t.CertPath); err != nil {
			errs = append(errs, fmt.Sprintf("tls: cert_path %q: %v", t.CertPath, err))
		}
		if _, err := os.Stat(t.KeyPath); err != nil {
			errs = append(errs, fmt.Sprintf("tls: key_path %q: %v", t.KeyPath, err))
		}
	case hasACME:
		errs = append(errs, validateACME(t.ACME)...)
	default:
		errs = append(errs, "tls: must specify either cert_path+key_path or acme")
	}
	return errs
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
var domainRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateACME(a *AcmeConfig) []string {
	var errs []string
	if !a.Enabled {
		return nil
	}
	if len(a.Domains) == 0 {
		errs = append(errs, "tls.acme: at least one domain is required")
	}
	if !emailRe.MatchString(a.Email) {
		errs = append(errs, fmt.Sprintf("tls.acme: invalid email %q", a.Email))
	}
	for _, d := range a.Domains {
		if !domainRe.MatchString(d) || len(d) > 253 {
			errs = append(errs, fmt.Sprintf("tls.acme: invalid domain %q", d))
		}
	}
	if a.RenewalDaysBeforeExpiry != nil {
		n := *a.RenewalDaysBeforeExpiry
		if n <= 0 || n > 89 {
			errs = append(errs, fmt.Sprintf("tls.acme: renewal_days_before_expiry must be 1-89, got %d", n))
		}
	}
	return errs
}

// checkPrefixConflicts implements §4.1's conflict rule: two prefixes
// conflict if, after trimming trailing '/' (except root), they are
// equal, or one is a proper prefix of the other and the next
// character in the longer is '/'. Root never conflicts.
func checkPrefixConflicts(routes map[string]*Route) []string {
	prefixes := make([]string, 0, len(routes))
	for p := range routes {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	var errs []string
	for i := 0; i < len(prefixes); i++ {
		for j := i + 1; j < len(prefixes); j++ {
			if prefixesConflict(prefixes[i], prefixes[j]) {
				errs = append(errs, fmt.Sprintf("routes %q and %q have conflicting prefixes", prefixes[i], prefixes[j]))
			}
		}
	}
	return errs
}

func normalizePrefix(p string) string {
	if p == "/" {
		return "/"
	}
	return strings.TrimRight(p, "/")
}

func prefixesConflict(a, b string) bool {
	a, b = normalizePrefix(a), normalizePrefix(b)
	if a == b {
		return true
	}
	if a == "/" || b == "/" {
		return false
	}
	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	if !strings.HasPrefix(longer, shorter) {
		return false
	}
	return len(longer) == len(shorter) || longer[len(shorter)] == '/'
}
