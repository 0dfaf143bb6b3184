package dispatcher

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

// serveStatic implements the Static variant (spec.md §4.5 step 4).
func (d *Dispatcher) serveStatic(w http.ResponseWriter, r *http.Request, prefix string, route *config.Route) {
	remainder := strings.TrimPrefix(normalizePath(r.URL.Path), prefix)
	cleaned := filepath.Clean("/" + remainder)

	fullPath := filepath.Join(route.Root, cleaned)
	rootAbs, err := filepath.Abs(route.Root)
	if err != nil {
		d.writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	fullAbs, err := filepath.Abs(fullPath)
	if err != nil || !strings.HasPrefix(fullAbs, rootAbs) {
		d.writeError(w, r, http.StatusForbidden, "Forbidden")
		return
	}

	info, err := os.Stat(fullAbs)
	switch {
	case os.IsNotExist(err):
		d.writeError(w, r, http.StatusNotFound, "Not Found")
		return
	case os.IsPermission(err):
		d.writeError(w, r, http.StatusForbidden, "Forbidden")
		return
	case err != nil:
		d.writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if info.IsDir() {
		fullAbs = filepath.Join(fullAbs, "index.html")
		if _, err := os.Stat(fullAbs); err != nil {
			d.writeError(w, r, http.StatusNotFound, "Not Found")
			return
		}
	}
	http.ServeFile(w, r, fullAbs)
}

// serveRedirect implements the Redirect variant.
func (d *Dispatcher) serveRedirect(w http.ResponseWriter, r *http.Request, prefix string, route *config.Route) {
	remainder := strings.TrimPrefix(normalizePath(r.URL.Path), prefix)
	location := strings.TrimRight(route.Target, "/") + remainder
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}
	w.Header().Set("Location", location)
	w.WriteHeader(route.Status)
}

// serveProxy implements the Proxy variant, and is reused by
// serveLoadBalance once a target has been chosen (spec.md §4.5 step 4
// "LoadBalance ... proceed as Proxy with the chosen target").
func (d *Dispatcher) serveProxy(w http.ResponseWriter, r *http.Request, prefix, target string, route *config.Route) {
	base, err := url.Parse(target)
	if err != nil {
		d.writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	outPath := rewritePath(prefix, normalizePath(r.URL.Path), route.PathRewrite)
	outURL := *base
	outURL.Path = singleJoiningSlash(base.Path, outPath)
	outURL.RawQuery = r.URL.RawQuery

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), r.Body)
	if err != nil {
		d.writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	outReq.Header = r.Header.Clone()
	outReq.ContentLength = r.ContentLength
	outReq.Host = base.Host
	stripHopByHopHeaders(outReq.Header)

	applyBaselineHeaders(outReq)
	applyRequestHeaders(route.RequestHeaders, outReq)
	if err := applyRequestBody(route.RequestBody, outReq); err != nil {
		d.writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if ip, _, err := splitHostPort(r.RemoteAddr); err == nil {
		appendForwardedFor(outReq, ip)
	}

	backendStart := time.Now()
	resp, err := d.client.Do(outReq)
	if err != nil {
		if r.Context().Err() != nil {
			return // client disconnected, nothing to write
		}
		if d.metrics != nil {
			d.metrics.ObserveBackendRequest(target, http.StatusBadGateway, time.Since(backendStart))
		}
		if isTimeout(err) {
			d.writeError(w, r, http.StatusGatewayTimeout, "Gateway Timeout")
		} else {
			d.writeError(w, r, http.StatusBadGateway, "Bad Gateway")
		}
		return
	}
	defer resp.Body.Close()
	if d.metrics != nil {
		d.metrics.ObserveBackendRequest(target, resp.StatusCode, time.Since(backendStart))
	}

	applyResponseHeaders(route.ResponseHeaders, r, resp)
	if err := applyResponseBody(route.ResponseBody, r, resp); err != nil {
		d.writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	stripHopByHopHeaders(resp.Header)
	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	// Body is streamed, never buffered in full (spec.md §4.5 step 5).
	_, _ = streamCopy(w, resp.Body)
}

// serveLoadBalance implements the LoadBalance variant.
func (d *Dispatcher) serveLoadBalance(w http.ResponseWriter, r *http.Request, prefix string, route *config.Route, st *state) {
	healthy := st.health.FilterHealthy(route.Targets, !st.snapshot.HealthCheck.Enabled)
	if len(healthy) == 0 {
		d.writeError(w, r, http.StatusServiceUnavailable, "No healthy backends available")
		return
	}
	balancer := st.balancers[prefix]
	target := balancer.Next(healthy)
	if target == "" {
		d.writeError(w, r, http.StatusServiceUnavailable, "No healthy backends available")
		return
	}
	d.serveProxy(w, r, prefix, target, route)
}
