package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("/etc/chemvis.yaml"); got != "/etc/chemvis.yaml" {
		t.Fatalf("explicit path ignored: %q", got)
	}

	t.Setenv("LOCAL", "true")
	if got := ResolveConfigPath(""); got != "./config/config.yaml" {
		t.Fatalf("local path = %q", got)
	}

	t.Setenv("LOCAL", "")
	if got := ResolveConfigPath(""); got != "/config/config.yaml" {
		t.Fatalf("default path = %q", got)
	}
}

func TestAllowedOrigins(t *testing.T) {
	if got := allowedOrigins([]string{""}); !slices.Equal(got, []string{"*"}) {
		t.Fatalf("empty origins = %v", got)
	}
	if got := allowedOrigins([]string{" http://a ", "", "http://b"}); !slices.Equal(got, []string{"http://a", "http://b"}) {
		t.Fatalf("origins = %v", got)
	}
}

func TestNewServesAuthenticatedAPI(t *testing.T) {
	dir := t.TempDir()
	cfg := "log:\n  level: error\n" +
		"auth:\n  tokens: \"secret:alice\"\n" +
		"modules:\n  equipment:\n    storage:\n      driver: memory\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := New(path)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	t.Cleanup(func() { a.cancel() })

	if got := a.config.GetInt("modules.equipment.retention.limit"); got != 5 {
		t.Fatalf("default retention limit = %d", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/datasets", nil)
	rec := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/datasets", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", rec.Code)
	}
}
