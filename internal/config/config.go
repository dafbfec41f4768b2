// Package config contains the configuration of the mpecdh commands.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/taurusgroup/multi-party-ecdh/internal/log"
)

// EnvPrefix prefixes the environment variables that override the file.
// `__` separates nested keys: MPECDH_LEDGER__BACKEND sets ledger.backend.
const EnvPrefix = "MPECDH_"

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendPogreb   = "pogreb"
	BackendPostgres = "postgres"
)

// Config is the top-level configuration.
type Config struct {
	Server   *ServerConfig   `koanf:"server"`
	Ledger   *LedgerConfig   `koanf:"ledger"`
	Ceremony *CeremonyConfig `koanf:"ceremony"`
	Driver   *DriverConfig   `koanf:"driver"`
	Log      *LogConfig      `koanf:"log"`
	Metrics  *MetricsConfig  `koanf:"metrics"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if cfg.Ledger != nil {
		if err := cfg.Ledger.Validate(); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
	}
	if cfg.Ceremony != nil {
		if err := cfg.Ceremony.Validate(); err != nil {
			return fmt.Errorf("ceremony: %w", err)
		}
	}
	if cfg.Driver != nil {
		if err := cfg.Driver.Validate(); err != nil {
			return fmt.Errorf("driver: %w", err)
		}
	}
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

// ServerConfig contains the HTTP API configuration.
type ServerConfig struct {
	// Endpoint is the address the API listens on.
	Endpoint string `koanf:"endpoint"`

	// AllowedOrigins restricts cross-origin requests. Empty allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New("no endpoint provided")
	}
	return nil
}

// LedgerConfig selects where ceremony states are stored.
type LedgerConfig struct {
	// Backend is one of memory, pogreb or postgres.
	Backend string `koanf:"backend"`

	// Path is the directory of the pogreb database.
	Path string `koanf:"path"`

	// Endpoint is the postgres connection string.
	Endpoint string `koanf:"endpoint"`
}

// Validate validates the ledger configuration.
func (cfg *LedgerConfig) Validate() error {
	switch cfg.Backend {
	case BackendMemory:
	case BackendPogreb:
		if cfg.Path == "" {
			return errors.New("pogreb backend needs a path")
		}
	case BackendPostgres:
		if cfg.Endpoint == "" {
			return errors.New("postgres backend needs an endpoint")
		}
	default:
		return fmt.Errorf("unknown backend '%s'", cfg.Backend)
	}
	return nil
}

// CeremonyConfig describes the wallet and the ceremonies it deploys.
type CeremonyConfig struct {
	// Owners are the hex encoded ed25519 public keys of the wallet owners.
	Owners []string `koanf:"owners"`

	// Threshold is the number of owner approvals a reconstruction needs.
	Threshold int `koanf:"threshold"`

	// Group is the default group of deployed ceremonies.
	Group string `koanf:"group"`

	AllowRoundCorrection bool `koanf:"allow_round_correction"`
}

// OwnerKeys decodes the owner public keys.
func (cfg *CeremonyConfig) OwnerKeys() ([][]byte, error) {
	keys := make([][]byte, 0, len(cfg.Owners))
	for i, o := range cfg.Owners {
		key, err := hex.DecodeString(strings.TrimPrefix(o, "0x"))
		if err != nil {
			return nil, fmt.Errorf("owner %d: %w", i, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("owner %d: public key length %d", i, len(key))
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Validate validates the ceremony configuration.
func (cfg *CeremonyConfig) Validate() error {
	if _, err := cfg.OwnerKeys(); err != nil {
		return err
	}
	if len(cfg.Owners) < 2 {
		return fmt.Errorf("need at least 2 owners, got %d", len(cfg.Owners))
	}
	if cfg.Threshold < 1 || cfg.Threshold > len(cfg.Owners) {
		return fmt.Errorf("threshold %d out of range [1, %d]", cfg.Threshold, len(cfg.Owners))
	}
	return nil
}

// DriverConfig bounds how participants wait for each other.
type DriverConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	MaxAttempts  int           `koanf:"max_attempts"`
}

// Validate validates the driver configuration.
func (cfg *DriverConfig) Validate() error {
	if cfg.PollInterval < 0 {
		return fmt.Errorf("negative poll interval %s", cfg.PollInterval)
	}
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("negative max attempts %d", cfg.MaxAttempts)
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	var format log.Format
	if err := format.Set(cfg.Format); err != nil {
		return err
	}
	_, err := log.ParseLevel(cfg.Level)
	return err
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	PullEndpoint string `koanf:"pull_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

// InitConfig loads the YAML file f, applies the environment overrides and validates the result.
func InitConfig(f string) (*Config, error) {
	return initConfig(file.Provider(f))
}

func initConfig(p koanf.Provider) (*Config, error) {
	var config Config
	k := koanf.New(".")

	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
