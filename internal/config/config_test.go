package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
org:
  id: acme
server:
  addr: ":9090"
  base_path: /v1
store:
  backend: memory
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Org.ID != "acme" || cfg.Server.Addr != ":9090" || cfg.Store.Backend != "memory" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	if _, err := FromYAML([]byte("server:\n  addr: ':1'\n")); err == nil {
		t.Fatal("missing org.id should fail")
	}
	if _, err := FromYAML([]byte("org:\n  id: acme\nstore:\n  backend: postgres\n")); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func TestDefaultRoundTrips(t *testing.T) {
	cfg := Default("acme")
	if cfg.Org.ID != "acme" {
		t.Fatalf("org = %s", cfg.Org.ID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Fatalf("backend = %s", cfg.Store.Backend)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Org.ID != "default-org" {
		t.Fatalf("org = %s", cfg.Org.ID)
	}

	path := filepath.Join(dir, "sprintdeck.yml")
	if err := os.WriteFile(path, []byte(GenerateDefault("acme")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Org.ID != "acme" {
		t.Fatalf("org = %s", cfg.Org.ID)
	}
}

func TestJWTSecretEnvIndirection(t *testing.T) {
	cfg := Default("acme")
	t.Setenv("SPRINTDECK_JWT_SECRET", "s3cret")
	if got := cfg.JWTSecret(); got != "s3cret" {
		t.Fatalf("secret = %s", got)
	}
	cfg.Auth.JWTSecretEnv = "OTHER_SECRET"
	t.Setenv("OTHER_SECRET", "other")
	if got := cfg.JWTSecret(); got != "other" {
		t.Fatalf("secret = %s", got)
	}
}
