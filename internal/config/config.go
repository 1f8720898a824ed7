// Package config loads callpipe configuration from an optional YAML file and
// CALLPIPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is read when no explicit config file is given. It may be absent.
const DefaultPath = "callpipe.yaml"

// Behavior types understood by the pipeline factory.
const (
	BehaviorLog          = "log"
	BehaviorTrace        = "trace"
	BehaviorMetrics      = "metrics"
	BehaviorRecord       = "record"
	BehaviorDefaultValue = "default_value"
	BehaviorRetry        = "retry"
	BehaviorThrottle     = "throttle"
	BehaviorWebhook      = "webhook"
)

// Storage types.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Storage   StorageConfig   `koanf:"storage"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	ServiceName string `koanf:"service_name"`
	Tracing     bool   `koanf:"tracing"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PipelineConfig lists behaviors in execution order.
type PipelineConfig struct {
	Behaviors []BehaviorConfig `koanf:"behaviors"`
}

// BehaviorConfig configures one pipeline entry. Which fields matter depends on Type.
type BehaviorConfig struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"`

	// Methods restricts the behavior to method names matching any of these globs.
	Methods []string `koanf:"methods"`
	// When is an expression that must evaluate to true for the behavior to apply.
	When string `koanf:"when"`

	// log
	Level string `koanf:"level"`

	// retry
	Attempts int `koanf:"attempts"`

	// throttle
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	// webhook
	URL     string            `koanf:"url"`
	Timeout string            `koanf:"timeout"`  // Duration string like "5s"
	OnError string            `koanf:"on_error"` // allow or deny (default: deny)
	Retries int               `koanf:"retries"`
	Headers map[string]string `koanf:"headers"`

	BlockPrivateNetworks bool `koanf:"block_private_networks"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path (or DefaultPath when empty), then applies
// CALLPIPE_ environment overrides. A missing DefaultPath is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// CALLPIPE_SERVER__PORT=9000 -> server.port
	if err := k.Load(env.Provider("CALLPIPE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CALLPIPE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefault(k, "server.port", 8080)
	setDefault(k, "log.level", "info")
	setDefault(k, "log.format", "json")
	setDefault(k, "telemetry.service_name", "callpipe")
	setDefault(k, "storage.type", StorageMemory)
	setDefault(k, "storage.sqlite.path", "./data/callpipe.db")

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Pipeline.Behaviors {
		b := &cfg.Pipeline.Behaviors[i]
		b.URL = substituteEnvVars(b.URL)
		for name, v := range b.Headers {
			b.Headers[name] = substituteEnvVars(v)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

// Validate checks values the pipeline factory and storage setup rely on.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageNone, StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("storage: invalid type %q (must be 'sqlite', 'memory' or 'none')", c.Storage.Type)
	}

	seen := make(map[string]bool)
	for i, b := range c.Pipeline.Behaviors {
		if b.Name == "" {
			return fmt.Errorf("pipeline behavior %d: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("pipeline behavior %s: duplicate name", b.Name)
		}
		seen[b.Name] = true

		if err := b.validate(); err != nil {
			return fmt.Errorf("pipeline behavior %s: %w", b.Name, err)
		}
	}
	return nil
}

func (b BehaviorConfig) validate() error {
	switch b.Type {
	case BehaviorLog, BehaviorTrace, BehaviorMetrics, BehaviorRecord, BehaviorDefaultValue:
	case BehaviorRetry:
		if b.Attempts < 1 {
			return fmt.Errorf("attempts must be at least 1, got %d", b.Attempts)
		}
	case BehaviorThrottle:
		if b.RatePerSecond <= 0 {
			return fmt.Errorf("rate_per_second must be positive, got %v", b.RatePerSecond)
		}
	case BehaviorWebhook:
		if b.URL == "" {
			return errors.New("url is required")
		}
		switch b.OnError {
		case "", "allow", "deny":
		default:
			return fmt.Errorf("invalid on_error %q (must be 'allow' or 'deny')", b.OnError)
		}
		if b.Timeout != "" {
			if _, err := time.ParseDuration(b.Timeout); err != nil {
				return fmt.Errorf("invalid timeout %q: %w", b.Timeout, err)
			}
		}
	default:
		return fmt.Errorf("unknown type %q", b.Type)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
