package supervisor

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

func writeConfig(t *testing.T, dir, target string) string {
	t.Helper()
	path := filepath.Join(dir, "edgeproxy.yaml")
	doc := `
listen_addr: "127.0.0.1:0"
routes:
  /api:
    type: proxy
    target: "` + target + `"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSupervisorLoadsAndReloads(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("v1"))
	}))
	defer backend.Close()

	dir := t.TempDir()
	path := writeConfig(t, dir, backend.URL)

	sup, err := New(path, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	rec := httptest.NewRecorder()
	sup.Dispatcher().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "v1" {
		t.Fatalf("expected v1 response, got %d %q", rec.Code, rec.Body.String())
	}

	backend2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("v2"))
	}))
	defer backend2.Close()

	snap, err := config.Parse([]byte(`
listen_addr: "127.0.0.1:0"
routes:
  /api:
    type: proxy
    target: "` + backend2.URL + `"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := sup.Reload(snap); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	rec2 := httptest.NewRecorder()
	sup.Dispatcher().ServeHTTP(rec2, req)
	if rec2.Body.String() != "v2" {
		t.Fatalf("expected v2 after reload, got %q", rec2.Body.String())
	}
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	dir := t.TempDir()
	path := writeConfig(t, dir, backend.URL)
	sup, err := New(path, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	os.Unsetenv(adminTokenEnv)
	req := httptest.NewRequest(http.MethodPost, "/-/config", nil)
	rec := httptest.NewRecorder()
	sup.AdminHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no token configured, got %d", rec.Code)
	}

	os.Setenv(adminTokenEnv, "secret")
	defer os.Unsetenv(adminTokenEnv)

	req2 := httptest.NewRequest(http.MethodPost, "/-/config", nil)
	rec2 := httptest.NewRecorder()
	sup.AdminHandler().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec2.Code)
	}
}
