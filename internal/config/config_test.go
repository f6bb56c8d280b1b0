package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dev.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "web:\n  addr: \"\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":5040" {
		t.Errorf("server addr default: got %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxLineBytes != 4*1024 {
		t.Errorf("max line bytes default: got %d", cfg.Server.MaxLineBytes)
	}
	if cfg.Registry.AutoRegister == nil || !*cfg.Registry.AutoRegister {
		t.Errorf("auto_register must default to true")
	}
	if cfg.Web.Addr != ":8080" {
		t.Errorf("web addr default: got %q", cfg.Web.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level default: got %q", cfg.Log.Level)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  addr: ":6001"
  max_line_bytes: 1024
  read_timeout: 90s
registry:
  auto_register: false
  devices: [ABC123, XYZ789]
storage:
  enable: true
  path: /tmp/positions.sqlite
nats:
  enable: true
  url: nats://localhost:4222
web:
  addr: ":9090"
log:
  level: debug
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":6001" {
		t.Errorf("server addr: got %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 90*time.Second {
		t.Errorf("read timeout: got %v", cfg.Server.ReadTimeout)
	}
	if *cfg.Registry.AutoRegister {
		t.Errorf("auto_register must be false")
	}
	if len(cfg.Registry.Devices) != 2 {
		t.Errorf("devices: got %v", cfg.Registry.Devices)
	}
	if cfg.NATS.SubjectPrefix != "trackserv.positions" {
		t.Errorf("subject prefix default: got %q", cfg.NATS.SubjectPrefix)
	}
	if lvl, err := cfg.Log.SlogLevel(); err != nil || lvl != slog.LevelDebug {
		t.Errorf("slog level: got %v err %v", lvl, err)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"storage path required", "storage:\n  enable: true\n"},
		{"nats url required", "nats:\n  enable: true\n"},
		{"devices required without auto-register", "registry:\n  auto_register: false\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"negative read timeout", "server:\n  read_timeout: -1s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
