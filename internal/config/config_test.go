package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kanban.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
[server]
addr = ":9000"
login-rate = "5-M"
trusted-proxies = ["10.0.0.1"]

[database]
path = "/tmp/board.db"

[session]
secret = "from-file"
max-age = 3600

[argon2]
memory = 4096
iterations = 2
parallelism = 1
`)
	t.Setenv("KANBAN_SESSION_SECRET", "from-env")
	t.Setenv("KANBAN_DEV", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.LoginRate != "5-M" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !reflect.DeepEqual(cfg.Server.TrustedProxies, []string{"10.0.0.1"}) {
		t.Errorf("trusted proxies = %v", cfg.Server.TrustedProxies)
	}
	if cfg.Database.Path != "/tmp/board.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Session.Secret != "from-env" || cfg.Session.MaxAge != 3600 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if !cfg.Server.Development {
		t.Error("KANBAN_DEV should enable development mode")
	}
	if cfg.Argon2.Memory != 4096 || cfg.Argon2.Iterations != 2 || cfg.Argon2.Parallelism != 1 {
		t.Errorf("argon2 = %+v", cfg.Argon2)
	}
}

func TestLoad_TrustedProxiesFromEnv(t *testing.T) {
	path := writeFile(t, "[server]\ntrusted-proxies = [\"10.0.0.1\"]\n")
	t.Setenv("KANBAN_TRUSTED_PROXIES", " 192.168.1.1, 10.1.0.0/16 ,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"192.168.1.1", "10.1.0.0/16"}
	if !reflect.DeepEqual(cfg.Server.TrustedProxies, want) {
		t.Fatalf("trusted proxies = %v, want %v", cfg.Server.TrustedProxies, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(writeFile(t, "[server\naddr=")); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("KANBAN_SECURE_COOKIES", "maybe")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid boolean")
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("KANBAN_TEST_VALUE", "")
	if got := EnvOrDefault("KANBAN_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("got %q", got)
	}
	t.Setenv("KANBAN_TEST_VALUE", "set")
	if got := EnvOrDefault("KANBAN_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("got %q", got)
	}
}
