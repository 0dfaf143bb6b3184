package supervisor

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/chahine-tech/edgeproxy/internal/config"
	"github.com/chahine-tech/edgeproxy/internal/metrics"
)

// adminTokenEnv names the environment variable holding the bearer
// token the admin endpoint requires (spec.md §4.8 "authenticated admin
// endpoint"). Like EDGEPROXY_INSECURE_UPSTREAM_TLS, this is
// deliberately an env var rather than a config field so the credential
// never lives in the same file a reload can rewrite.
const adminTokenEnv = "EDGEPROXY_ADMIN_TOKEN"

// AdminHandler returns the handler for the admin listener: POST
// /-/config for reloads and GET /-/healthz for a liveness probe of the
// supervisor itself.
func (s *Supervisor) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/-/config", s.requireAuth(s.handleConfigReload))
	mux.HandleFunc("/-/healthz", s.handleHealthz)
	if s.metricsReg != nil {
		mux.Handle("/-/metrics", metrics.Handler(s.metricsReg))
	}
	return mux
}

func (s *Supervisor) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := os.Getenv(adminTokenEnv)
		if token == "" {
			http.Error(w, "admin endpoint disabled: "+adminTokenEnv+" not set", http.StatusServiceUnavailable)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleConfigReload implements the admin side of §4.8's reload
// protocol: parse and fully validate the JSON body before touching any
// state, returning 400 with the full error list on failure.
func (s *Supervisor) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	snap, err := config.Parse(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
		return
	}

	if err := s.Reload(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "reloaded"})
}

func (s *Supervisor) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
