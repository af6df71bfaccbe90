package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/core/genesis"
	"nftmarket/crypto"
)

func testTreasury() string {
	var addr [crypto.AddressLength]byte
	addr[0] = 0x42
	addr[len(addr)-1] = 0x24
	return crypto.FormatAccount(addr)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "leveldb", cfg.Storage.Backend)
	require.Equal(t, "0", cfg.Market.DepositPerByte)
	require.Equal(t, filepath.Join(cfg.DataDir, "state"), cfg.Storage.Path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, again.ListenAddress)
	require.Equal(t, cfg.RPC, again.RPC)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/market"
Environment = "staging"

[Storage]
Backend = "bolt"
Path = "/var/lib/market/state.bolt"

[Market]
Treasury = "` + testTreasury() + `"
DepositPerByte = "7"
PausedModules = ["auction"]
MaxCommitRetries = 3

[Indexer]
Driver = "sqlite"
DSN = "file:history.db"

[Bus]
RedisAddr = "localhost:6379"
Channel = "market"

[RPC]
RateLimitPerSecond = 5.5
Burst = 10

[[Genesis]]
Address = "` + testTreasury() + `"
Balance = "1000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, "bolt", cfg.Storage.Backend)
	require.Equal(t, "/var/lib/market/state.bolt", cfg.Storage.Path)
	require.Equal(t, []string{"auction"}, cfg.Market.PausedModules)
	require.Equal(t, 3, cfg.Market.MaxCommitRetries)
	require.Equal(t, "sqlite", cfg.Indexer.Driver)
	require.Equal(t, "market", cfg.Bus.Channel)
	require.Equal(t, 5.5, cfg.RPC.RateLimitPerSecond)
	require.Len(t, cfg.Genesis, 1)
	require.Equal(t, "1000", cfg.Genesis[0].Balance)
	// unset sections keep their defaults
	require.Equal(t, 100, cfg.Log.MaxSizeMB)
	require.NoError(t, cfg.Validate())

	rate, err := cfg.DepositRate()
	require.NoError(t, err)
	require.Equal(t, int64(7), rate.Int64())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ValidatorKey")
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("MARKET_TREASURY", testTreasury())
	t.Setenv("MARKET_PAUSED_MODULES", "order, registry")
	t.Setenv("MARKET_MAX_COMMIT_RETRIES", "12")
	t.Setenv("MARKET_STORAGE_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, testTreasury(), cfg.Market.Treasury)
	require.Equal(t, []string{"order", "registry"}, cfg.Market.PausedModules)
	require.Equal(t, 12, cfg.Market.MaxCommitRetries)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Market.Treasury = testTreasury()
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"missing treasury":  func(c *Config) { c.Market.Treasury = "" },
		"bad treasury":      func(c *Config) { c.Market.Treasury = "nft1notanaddress" },
		"zero treasury":     func(c *Config) { c.Market.Treasury = crypto.FormatAccount([crypto.AddressLength]byte{}) },
		"negative deposit":  func(c *Config) { c.Market.DepositPerByte = "-1" },
		"garbage deposit":   func(c *Config) { c.Market.DepositPerByte = "ten" },
		"unknown backend":   func(c *Config) { c.Storage.Backend = "cassandra" },
		"unknown module":    func(c *Config) { c.Market.PausedModules = []string{"swap"} },
		"indexer no dsn":    func(c *Config) { c.Indexer.Driver = "postgres" },
		"unknown driver":    func(c *Config) { c.Indexer.Driver = "mysql"; c.Indexer.DSN = "x" },
		"bus no channel":    func(c *Config) { c.Bus.RedisAddr = "localhost:6379"; c.Bus.Channel = "" },
		"negative burst":    func(c *Config) { c.RPC.Burst = -1 },
		"webhook scheme":    func(c *Config) { c.Webhook.Endpoint = "ftp://hooks.example" },
		"bad genesis":       func(c *Config) { c.Genesis = append(c.Genesis, genesisAccount("nope", "1")) },
		"negative retries":  func(c *Config) { c.Market.MaxCommitRetries = -1 },
		"asset as treasury": func(c *Config) { c.Market.Treasury = crypto.FormatAsset([crypto.AddressLength]byte{1}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func genesisAccount(addr, balance string) genesis.Account {
	return genesis.Account{Address: addr, Balance: balance}
}
