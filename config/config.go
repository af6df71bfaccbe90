package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"nftmarket/core/genesis"
)

// Config is the daemon configuration file.
type Config struct {
	ListenAddress string            `toml:"ListenAddress"`
	DataDir       string            `toml:"DataDir"`
	Environment   string            `toml:"Environment"`
	Storage       StorageConfig     `toml:"Storage"`
	Market        MarketConfig      `toml:"Market"`
	Indexer       IndexerConfig     `toml:"Indexer"`
	Bus           BusConfig         `toml:"Bus"`
	Webhook       WebhookConfig     `toml:"Webhook"`
	Telemetry     TelemetryConfig   `toml:"Telemetry"`
	Log           LogConfig         `toml:"Log"`
	RPC           RPCConfig         `toml:"RPC"`
	Genesis       []genesis.Account `toml:"Genesis"`
}

// StorageConfig selects the state database backend.
type StorageConfig struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path,omitempty"`
}

// MarketConfig carries the engine parameters.
type MarketConfig struct {
	Treasury         string   `toml:"Treasury"`
	DepositPerByte   string   `toml:"DepositPerByte"`
	PausedModules    []string `toml:"PausedModules"`
	MaxCommitRetries int      `toml:"MaxCommitRetries"`
}

// IndexerConfig configures the explorer history database. An empty driver
// disables the indexer.
type IndexerConfig struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// BusConfig configures the Redis event publisher. An empty address disables
// publishing.
type BusConfig struct {
	RedisAddr string `toml:"RedisAddr"`
	Channel   string `toml:"Channel"`
}

// WebhookConfig configures settlement webhooks. An empty endpoint disables
// delivery.
type WebhookConfig struct {
	Endpoint string `toml:"Endpoint"`
	Secret   string `toml:"Secret,omitempty"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
	Headers  string `toml:"Headers,omitempty"`
}

// LogConfig configures the optional rotating log file.
type LogConfig struct {
	File       string `toml:"File,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPCConfig bounds request throughput per client.
type RPCConfig struct {
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	Burst              int     `toml:"Burst"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults. Environment overrides (MARKET_*) are applied after
// an optional .env file is loaded.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		cfg = Defaults()
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return nil, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = filepath.Join(cfg.DataDir, "state")
	}
	if cfg.Genesis == nil {
		cfg.Genesis = []genesis.Account{}
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./market-data",
		Environment:   "dev",
		Storage:       StorageConfig{Backend: "leveldb"},
		Market: MarketConfig{
			DepositPerByte:   "0",
			PausedModules:    []string{},
			MaxCommitRetries: 8,
		},
		Bus:       BusConfig{Channel: "nftmarket.events"},
		Telemetry: TelemetryConfig{Insecure: true, Traces: true, Metrics: true},
		Log:       LogConfig{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		RPC:       RPCConfig{RateLimitPerSecond: 20, Burst: 40},
		Genesis:   []genesis.Account{},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Defaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.ListenAddress, "MARKET_LISTEN_ADDRESS")
	setStr(&cfg.DataDir, "MARKET_DATA_DIR")
	setStr(&cfg.Environment, "MARKET_ENV")

	setStr(&cfg.Storage.Backend, "MARKET_STORAGE_BACKEND")
	setStr(&cfg.Storage.Path, "MARKET_STORAGE_PATH")

	setStr(&cfg.Market.Treasury, "MARKET_TREASURY")
	setStr(&cfg.Market.DepositPerByte, "MARKET_DEPOSIT_PER_BYTE")
	setList(&cfg.Market.PausedModules, "MARKET_PAUSED_MODULES")
	setInt(&cfg.Market.MaxCommitRetries, "MARKET_MAX_COMMIT_RETRIES")

	setStr(&cfg.Indexer.Driver, "MARKET_INDEXER_DRIVER")
	setStr(&cfg.Indexer.DSN, "MARKET_INDEXER_DSN")

	setStr(&cfg.Bus.RedisAddr, "MARKET_BUS_REDIS_ADDR")
	setStr(&cfg.Bus.Channel, "MARKET_BUS_CHANNEL")

	setStr(&cfg.Webhook.Endpoint, "MARKET_WEBHOOK_ENDPOINT")
	setStr(&cfg.Webhook.Secret, "MARKET_WEBHOOK_SECRET")

	setStr(&cfg.Telemetry.Endpoint, "MARKET_OTEL_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "MARKET_OTEL_INSECURE")
	setStr(&cfg.Telemetry.Headers, "MARKET_OTEL_HEADERS")

	setStr(&cfg.Log.File, "MARKET_LOG_FILE")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// TreasuryAddress decodes the configured fee treasury.
func (c *Config) TreasuryAddress() ([20]byte, error) {
	if strings.TrimSpace(c.Market.Treasury) == "" {
		return [20]byte{}, fmt.Errorf("market: treasury not configured")
	}
	addr, err := genesis.ParseBech32Account(strings.TrimSpace(c.Market.Treasury))
	if err != nil {
		return [20]byte{}, fmt.Errorf("market: treasury: %w", err)
	}
	if addr == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("market: treasury must not be the zero address")
	}
	return addr, nil
}

// DepositRate parses the per-byte storage deposit. Empty means zero.
func (c *Config) DepositRate() (*big.Int, error) {
	raw := strings.TrimSpace(c.Market.DepositPerByte)
	if raw == "" {
		return big.NewInt(0), nil
	}
	rate, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("market: invalid deposit per byte %q", c.Market.DepositPerByte)
	}
	if rate.Sign() < 0 {
		return nil, fmt.Errorf("market: deposit per byte must not be negative")
	}
	return rate, nil
}
