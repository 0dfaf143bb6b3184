package dispatcher

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chahine-tech/edgeproxy/internal/config"
	"github.com/chahine-tech/edgeproxy/internal/health"
)

func newTestDispatcher(t *testing.T, yamlDoc string) *Dispatcher {
	t.Helper()
	snap, err := config.Parse([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	registry := health.NewRegistry(snap.AllBackends(), nil)
	return New(snap, registry, zerolog.Nop(), nil)
}

func TestDispatcherStaticServesFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := fmt.Sprintf(`
listen_addr: "127.0.0.1:0"
routes:
  /files:
    type: static
    root: %q
`, dir)
	d := newTestDispatcher(t, doc)

	req := httptest.NewRequest(http.MethodGet, "/files/hello.txt", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "hi" {
		t.Fatalf("expected 200 'hi', got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDispatcherStaticRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	doc := fmt.Sprintf(`
listen_addr: "127.0.0.1:0"
routes:
  /files:
    type: static
    root: %q
`, dir)
	d := newTestDispatcher(t, doc)

	req := httptest.NewRequest(http.MethodGet, "/files/../../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatal("expected traversal attempt to be rejected")
	}
}

const redirectDoc = `
listen_addr: "127.0.0.1:0"
routes:
  /old:
    type: redirect
    target: "https://example.com/new"
    status: 302
`

func TestDispatcherRedirect(t *testing.T) {
	d := newTestDispatcher(t, redirectDoc)

	req := httptest.NewRequest(http.MethodGet, "/old/path", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.com/new/path" {
		t.Fatalf("expected rewritten location, got %q", loc)
	}
}

func TestDispatcherProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("from backend: " + r.URL.Path))
	}))
	defer backend.Close()

	doc := fmt.Sprintf(`
listen_addr: "127.0.0.1:0"
routes:
  /api:
    type: proxy
    target: %q
`, backend.URL)
	d := newTestDispatcher(t, doc)

	req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "from backend: /widgets" {
		t.Fatalf("expected forwarded path, got %q", got)
	}
}

func TestDispatcherNoMatchIs404(t *testing.T) {
	doc := `
listen_addr: "127.0.0.1:0"
routes:
  /api:
    type: proxy
    target: "http://example.com"
`
	d := newTestDispatcher(t, doc)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDispatcherRateLimitRejects(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	doc := fmt.Sprintf(`
listen_addr: "127.0.0.1:0"
routes:
  /api:
    type: proxy
    target: %q
    rate_limit:
      by: route
      requests: 1
      period: 1m
`, backend.URL)
	d := newTestDispatcher(t, doc)

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	rec1 := httptest.NewRecorder()
	d.ServeHTTP(rec1, req)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	d.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rate limited, got %d", rec2.Code)
	}
}

const loadBalanceDoc = `
listen_addr: "127.0.0.1:0"
routes:
  /api:
    type: load_balance
    targets: ["http://down-1.invalid", "http://down-2.invalid"]
    strategy: round_robin
`

func TestDispatcherLoadBalanceNoHealthyBackends(t *testing.T) {
	d := newTestDispatcher(t, loadBalanceDoc)

	reg := d.HealthRegistry()
	for _, b := range reg.Backends() {
		if !strings.Contains(b, "invalid") {
			t.Fatalf("unexpected backend %s", b)
		}
		for i := 0; i < 3; i++ {
			reg.Record(b).OnFail(3) // matches DefaultHealthCheckConfig's unhealthy_threshold
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
