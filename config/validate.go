package config

import (
	"fmt"
	"net/url"
	"strings"

	"nftmarket/core/genesis"
)

var knownModules = map[string]struct{}{
	"order":    {},
	"auction":  {},
	"registry": {},
}

// Validate checks the configuration for values the daemon cannot start with.
func (c *Config) Validate() error {
	if _, err := c.TreasuryAddress(); err != nil {
		return err
	}
	if _, err := c.DepositRate(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case "", "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	for _, module := range c.Market.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			return fmt.Errorf("market: unknown module %q in PausedModules", module)
		}
	}
	if c.Market.MaxCommitRetries < 0 {
		return fmt.Errorf("market: MaxCommitRetries must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Indexer.Driver)) {
	case "":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: DSN required for driver %q", c.Indexer.Driver)
		}
	default:
		return fmt.Errorf("indexer: unknown driver %q", c.Indexer.Driver)
	}
	if strings.TrimSpace(c.Bus.RedisAddr) != "" && strings.TrimSpace(c.Bus.Channel) == "" {
		return fmt.Errorf("bus: channel required when RedisAddr is set")
	}
	if endpoint := strings.TrimSpace(c.Webhook.Endpoint); endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("webhook: invalid endpoint %q", c.Webhook.Endpoint)
		}
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if _, err := genesis.Parse(c.Genesis); err != nil {
		return err
	}
	return nil
}
