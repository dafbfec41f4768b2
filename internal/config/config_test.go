package config

import (
	"testing"
	"time"

	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleYAML = `
server:
  endpoint: localhost:8080
  allowed_origins: ["https://example.org"]
ledger:
  backend: pogreb
  path: /var/lib/mpecdh
ceremony:
  owners:
    - "0x3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29"
    - "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
  threshold: 2
  group: x25519
driver:
  poll_interval: 50ms
  max_attempts: 100
log:
  format: console
  level: debug
metrics:
  pull_endpoint: localhost:9090
`

func TestInitConfig(t *testing.T) {
	cfg, err := initConfig(rawbytes.Provider([]byte(exampleYAML)))
	require.NoError(t, err)

	require.NotNil(t, cfg.Server)
	assert.Equal(t, "localhost:8080", cfg.Server.Endpoint)
	assert.Equal(t, []string{"https://example.org"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, &LedgerConfig{Backend: BackendPogreb, Path: "/var/lib/mpecdh"}, cfg.Ledger)
	assert.Equal(t, 2, cfg.Ceremony.Threshold)
	assert.Equal(t, 50*time.Millisecond, cfg.Driver.PollInterval)
	assert.Equal(t, 100, cfg.Driver.MaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "localhost:9090", cfg.Metrics.PullEndpoint)

	keys, err := cfg.Ceremony.OwnerKeys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Len(t, keys[0], 32)
}

func TestInitConfigEnvOverride(t *testing.T) {
	t.Setenv("MPECDH_LEDGER__BACKEND", "postgres")
	t.Setenv("MPECDH_LEDGER__ENDPOINT", "postgresql://mpecdh@localhost:5432/mpecdh")
	t.Setenv("MPECDH_CEREMONY__ALLOW_ROUND_CORRECTION", "true")

	cfg, err := initConfig(rawbytes.Provider([]byte(exampleYAML)))
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Ledger.Backend)
	assert.Equal(t, "postgresql://mpecdh@localhost:5432/mpecdh", cfg.Ledger.Endpoint)
	assert.True(t, cfg.Ceremony.AllowRoundCorrection)
}

func TestValidate(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"no endpoint":       {Server: &ServerConfig{}},
		"unknown backend":   {Ledger: &LedgerConfig{Backend: "redis"}},
		"pogreb no path":    {Ledger: &LedgerConfig{Backend: BackendPogreb}},
		"postgres no dsn":   {Ledger: &LedgerConfig{Backend: BackendPostgres}},
		"one owner":         {Ceremony: &CeremonyConfig{Owners: []string{"00"}, Threshold: 1}},
		"bad owner":         {Ceremony: &CeremonyConfig{Owners: []string{"zz", "zz"}, Threshold: 1}},
		"threshold":         {Ceremony: &CeremonyConfig{Owners: make([]string, 2), Threshold: 3}},
		"negative interval": {Driver: &DriverConfig{PollInterval: -time.Second}},
		"log format":        {Log: &LogConfig{Format: "xml"}},
		"log level":         {Log: &LogConfig{Level: "loud"}},
		"metrics":           {Metrics: &MetricsConfig{}},
	} {
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, (&Config{Ledger: &LedgerConfig{Backend: BackendMemory}}).Validate())
}
