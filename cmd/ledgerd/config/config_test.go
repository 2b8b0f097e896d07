package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledgerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, BackendPebble, cfg.Store.Backend)
	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Equal(t, DefaultRPCAddr, cfg.RPC.Addr)
	assert.Equal(t, []string{"*"}, cfg.RPC.AllowedOrigins)
	assert.Equal(t, DefaultRESTAddr, cfg.REST.Addr)
	assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)
	assert.Equal(t, DefaultPublishTimeout, cfg.PublishTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Genesis.Enabled())
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
publish_timeout: 2s
store:
  backend: leveldb
  path: /var/lib/ledger
rpc:
  addr: 127.0.0.1:8545
  allowed_origins: ["https://example.org"]
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: ledger
genesis:
  token_reserve: 1000
  base_reserve: 500
  price_range_min: 1
  price_range_max: 4
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 2*time.Second, cfg.PublishTimeout)
	assert.Equal(t, StoreConfig{Backend: BackendLevelDB, Path: "/var/lib/ledger"}, cfg.Store)
	assert.Equal(t, []string{"https://example.org"}, cfg.RPC.AllowedOrigins)
	assert.Equal(t, DefaultRESTAddr, cfg.REST.Addr, "unset keys keep their default")
	require.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, uint(DefaultKafkaMaxTries), cfg.Kafka.MaxTries)
	require.True(t, cfg.Genesis.Enabled())
	assert.Equal(t, engine.ReserveState{TokenReserve: 1000, BaseReserve: 500, PriceRangeMin: 1, PriceRangeMax: 4}, cfg.Genesis.State())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: pebble\n")
	t.Setenv("LEDGERD_STORE_BACKEND", "memory")
	t.Setenv("LEDGERD_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("LEDGERD_GENESIS_TOKEN_RESERVE", "10")
	t.Setenv("LEDGERD_GENESIS_BASE_RESERVE", "20")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, uint64(10), cfg.Genesis.TokenReserve)
	assert.Equal(t, uint64(20), cfg.Genesis.BaseReserve)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LogLevel:       "info",
			PublishTimeout: time.Second,
			Store:          StoreConfig{Backend: BackendMemory},
			RPC:            RPCConfig{Addr: ":8545"},
		}
	}

	testCases := []struct {
		name        string
		mutate      func(c *Config)
		expectedErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, `unknown store.backend "redis"`},
		{"pebble without path", func(c *Config) { c.Store.Backend = BackendPebble }, "store.path is required for the pebble backend"},
		{"no listeners", func(c *Config) { c.RPC.Addr = "" }, "at least one of rpc.addr and rest.addr is required"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, `invalid log_level "loud"`},
		{"zero publish timeout", func(c *Config) { c.PublishTimeout = 0 }, "invalid publish_timeout"},
		{"kafka without topic", func(c *Config) { c.Kafka = KafkaConfig{Brokers: []string{"k:9092"}, MaxTries: 1} }, "kafka.topic is required when kafka.brokers is set"},
		{"kafka zero tries", func(c *Config) { c.Kafka = KafkaConfig{Brokers: []string{"k:9092"}, Topic: "t"} }, "invalid kafka.max_tries"},
		{"half genesis", func(c *Config) { c.Genesis.TokenReserve = 5 }, "genesis reserves must both be non-zero"},
		{"inverted genesis range", func(c *Config) {
			c.Genesis = GenesisConfig{TokenReserve: 1, BaseReserve: 1, PriceRangeMin: 9, PriceRangeMax: 2}
		}, "genesis.price_range_min exceeds genesis.price_range_max"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.expectedErr)
		})
	}
}
