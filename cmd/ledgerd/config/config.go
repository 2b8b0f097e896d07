package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/spf13/viper"
)

const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"

	DefaultBackend        = BackendPebble
	DefaultStorePath      = "data/ledger"
	DefaultRPCAddr        = ":8545"
	DefaultRESTAddr       = ":8080"
	DefaultMetricsAddr    = ":9090"
	DefaultKafkaTopic     = "reserve-ledger-events"
	DefaultKafkaMaxTries  = 3
	DefaultPublishTimeout = 5 * time.Second
	DefaultLogLevel       = "info"

	envPrefix = "LEDGERD"
)

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// RPCConfig configures the JSON-RPC listener.
type RPCConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ListenConfig configures a plain HTTP listener. An empty Addr disables it.
type ListenConfig struct {
	Addr string `mapstructure:"addr"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	MaxTries uint     `mapstructure:"max_tries"`
}

// Enabled reports whether event publishing is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// GenesisConfig seeds an uninitialized pool at startup. It is ignored when both
// reserves are zero.
type GenesisConfig struct {
	TokenReserve  uint64 `mapstructure:"token_reserve"`
	BaseReserve   uint64 `mapstructure:"base_reserve"`
	PriceRangeMin uint64 `mapstructure:"price_range_min"`
	PriceRangeMax uint64 `mapstructure:"price_range_max"`
}

// Enabled reports whether a genesis record is configured.
func (g GenesisConfig) Enabled() bool {
	return g.TokenReserve != 0 || g.BaseReserve != 0
}

// State returns the genesis record as a ReserveState.
func (g GenesisConfig) State() engine.ReserveState {
	return engine.ReserveState{
		TokenReserve:  g.TokenReserve,
		BaseReserve:   g.BaseReserve,
		PriceRangeMin: g.PriceRangeMin,
		PriceRangeMax: g.PriceRangeMax,
	}
}

// Config is the ledgerd configuration.
type Config struct {
	LogLevel       string        `mapstructure:"log_level"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	Store          StoreConfig   `mapstructure:"store"`
	RPC            RPCConfig     `mapstructure:"rpc"`
	REST           ListenConfig  `mapstructure:"rest"`
	Metrics        ListenConfig  `mapstructure:"metrics"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
	Genesis        GenesisConfig `mapstructure:"genesis"`
}

// SlogLevel parses LogLevel. Validate has already rejected unknown values.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.LogLevel))
	return level
}

// LoadConfig reads the file at path, when path is non-empty, and applies
// LEDGERD_* environment overrides (LEDGERD_STORE_BACKEND, LEDGERD_KAFKA_BROKERS, ...).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"log_level":               DefaultLogLevel,
		"publish_timeout":         DefaultPublishTimeout,
		"store.backend":           DefaultBackend,
		"store.path":              DefaultStorePath,
		"rpc.addr":                DefaultRPCAddr,
		"rpc.allowed_origins":     []string{"*"},
		"rest.addr":               DefaultRESTAddr,
		"metrics.addr":            DefaultMetricsAddr,
		"kafka.brokers":           []string{},
		"kafka.topic":             DefaultKafkaTopic,
		"kafka.max_tries":         DefaultKafkaMaxTries,
		"genesis.token_reserve":   0,
		"genesis.base_reserve":    0,
		"genesis.price_range_min": 0,
		"genesis.price_range_max": 0,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, cfg.Validate()
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPebble, BackendLevelDB:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	if c.RPC.Addr == "" && c.REST.Addr == "" {
		return errors.New("at least one of rpc.addr and rest.addr is required")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("invalid publish_timeout")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	if c.Kafka.Enabled() {
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required when kafka.brokers is set")
		}
		if c.Kafka.MaxTries == 0 {
			return errors.New("invalid kafka.max_tries")
		}
	}

	if c.Genesis.Enabled() {
		if c.Genesis.TokenReserve == 0 || c.Genesis.BaseReserve == 0 {
			return errors.New("genesis reserves must both be non-zero")
		}
		if c.Genesis.PriceRangeMin > c.Genesis.PriceRangeMax {
			return errors.New("genesis.price_range_min exceeds genesis.price_range_max")
		}
	}
	return nil
}
