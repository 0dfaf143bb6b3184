package dispatcher

import (
	"io"
	"net"
	"net/http"
	"strings"
)

// singleJoiningSlash is httputil.NewSingleHostReverseProxy's own helper,
// reproduced here because it is unexported in net/http/httputil.
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

func splitHostPort(hostport string) (string, string, error) {
	return net.SplitHostPort(hostport)
}

func appendForwardedFor(req *http.Request, ip string) {
	if req.Header.Get("X-Real-IP") == "" {
		req.Header.Set("X-Real-IP", ip)
	}
	if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
		req.Header.Set("X-Forwarded-For", prior+", "+ip)
	} else {
		req.Header.Set("X-Forwarded-For", ip)
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// hopByHopHeaders is httputil.ReverseProxy's own hopHeaders list
// (RFC 7230 §6.1), reproduced here because it is unexported there.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// stripHopByHopHeaders removes both the fixed hop-by-hop set and any
// header named by a Connection header value, matching
// httputil.ReverseProxy's behavior so neither direction of serveProxy
// leaks connection-specific state across the proxy boundary.
func stripHopByHopHeaders(h http.Header) {
	if c := h.Get("Connection"); c != "" {
		for _, name := range strings.Split(c, ",") {
			h.Del(strings.TrimSpace(name))
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

func streamCopy(w io.Writer, r io.Reader) (int64, error) {
	return io.Copy(w, r)
}
