package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
storage:
  driver: postgres
postgres:
  url: postgres://localhost/assess
session:
  lease_ttl: 3s
roles:
  admins: ["root"]
  operators: ["op-1", "op-2"]
`)
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9100" || cfg.Redis.Addr != "localhost:6380" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Storage.Driver != DriverPostgres || len(cfg.Roles.Operators) != 2 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if TTLDuration(cfg.Session.LeaseTTL, time.Second) != 3*time.Second {
		t.Fatalf("unexpected lease ttl %q", cfg.Session.LeaseTTL)
	}
	if cfg.Session.TTL != "2h" || cfg.Log.Format != "json" {
		t.Fatalf("defaults must survive partial files: %+v", cfg)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != DriverMemory || cfg.Server.Port != "8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown driver":    "storage:\n  driver: sqlite\n",
		"bad duration":      "session:\n  ttl: soon\n",
		"postgres no url":   "storage:\n  driver: postgres\n",
		"mongo no uri":      "storage:\n  driver: mongo\n",
		"non numeric port":  "server:\n  port: http\n",
		"empty operator id": "roles:\n  operators: [\"\"]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if err == nil || !strings.Contains(err.Error(), "invalid config") {
				t.Fatalf("expected invalid config, got %v", err)
			}
		})
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("nope", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
}
