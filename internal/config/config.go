package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Registry RegistryConfig `yaml:"registry"`
	Storage  StorageConfig  `yaml:"storage"`
	NATS     NATSConfig     `yaml:"nats"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	MaxLineBytes int           `yaml:"max_line_bytes"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

type RegistryConfig struct {
	AutoRegister *bool    `yaml:"auto_register"`
	Devices      []string `yaml:"devices"`
}

type StorageConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type NATSConfig struct {
	Enable        bool   `yaml:"enable"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5040"
	}
	if cfg.Server.MaxLineBytes <= 0 {
		cfg.Server.MaxLineBytes = 4 * 1024
	}
	if cfg.Server.ReadTimeout < 0 {
		return Config{}, fmt.Errorf("server.read_timeout must not be negative")
	}

	// Unknown devices register themselves unless explicitly disabled.
	if cfg.Registry.AutoRegister == nil {
		t := true
		cfg.Registry.AutoRegister = &t
	}
	if !*cfg.Registry.AutoRegister && len(cfg.Registry.Devices) == 0 {
		return Config{}, fmt.Errorf("registry.devices is required when registry.auto_register is false")
	}

	if cfg.Storage.Enable && cfg.Storage.Path == "" {
		return Config{}, fmt.Errorf("storage.path is required when storage.enable is true")
	}

	if cfg.NATS.Enable {
		if cfg.NATS.URL == "" {
			return Config{}, fmt.Errorf("nats.url is required when nats.enable is true")
		}
		if cfg.NATS.SubjectPrefix == "" {
			cfg.NATS.SubjectPrefix = "trackserv.positions"
		}
	}

	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":8080"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SlogLevel maps the configured level name onto slog.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q is not one of debug, info, warn, error", l.Level)
	}
}
