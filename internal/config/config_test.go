package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("COOKIE_SECRET", "0123456789abcdef")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StorageDriver != StoragePostgres || cfg.CODFee != 50 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout)
	}
}

func TestFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	body := `
http:
  addr: ":9000"
  allowed_origins: ["https://shop.example"]
backend:
  url: "https://api.example/api/"
  timeout_seconds: 3
storage:
  driver: Redis
checkout:
  cod_fee: 0
oauth:
  github:
    client_id: file-id
    client_secret: file-secret
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("STOREFRONT_CONFIG", path)
	t.Setenv("COOKIE_SECRET", "0123456789abcdef")
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Fatalf("env should win over file, got %s", cfg.HTTPAddr)
	}
	if cfg.BackendURL != "https://api.example/api/" || cfg.BackendTimeout != 3*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.StorageDriver != StorageRedis || cfg.CODFee != 0 {
		t.Fatalf("unexpected storage/fee: %s %v", cfg.StorageDriver, cfg.CODFee)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.GitHubClientID != "file-id" || cfg.GitHubClientSecret != "file-secret" {
		t.Fatalf("oauth client not read from file")
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("COOKIE_SECRET", "")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("missing cookie secret should fail")
	}
	t.Setenv("COOKIE_SECRET", "0123456789abcdef")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("unknown storage driver should fail")
	}
}
