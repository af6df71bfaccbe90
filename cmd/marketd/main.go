package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/core/genesis"
	"nftmarket/explorer"
	"nftmarket/integrations/bus"
	"nftmarket/integrations/webhooks"
	"nftmarket/native/common"
	"nftmarket/observability/logging"
	"nftmarket/observability/metrics"
	telemetry "nftmarket/observability/otel"
	"nftmarket/rpc"
	"nftmarket/storage"
)

const (
	serviceName = "marketd"
	rpcTokenEnv = "MARKET_RPC_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *logLevel); err != nil {
		slog.Error("marketd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, level string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        cfg.Environment,
		Level:      logging.ParseLevel(level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(strings.ToLower(cfg.Storage.Backend), cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	logger.Info("state database opened", slog.String("backend", cfg.Storage.Backend))

	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		return err
	}
	deposit, err := cfg.DepositRate()
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, core.Config{
		Treasury:         treasury,
		DepositPerByte:   deposit,
		MaxCommitRetries: cfg.Market.MaxCommitRetries,
		Pauses:           common.NewPauses(cfg.Market.PausedModules...),
	})
	if err != nil {
		_ = db.Close()
		return err
	}
	defer node.Close()
	node.SetLogger(logger.With("component", "market"))
	node.SetMetrics(metrics.Market())
	node.Feed().AddSink(metrics.Market())

	allocs, err := genesis.Parse(cfg.Genesis)
	if err != nil {
		return err
	}
	applied, err := genesis.Apply(node.State(), allocs)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis allocations applied", slog.Int("accounts", len(allocs)))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	var history rpc.History
	if driver := strings.ToLower(strings.TrimSpace(cfg.Indexer.Driver)); driver != "" {
		gormDB, err := explorer.Open(driver, cfg.Indexer.DSN)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		indexer, err := explorer.NewIndexer(gormDB, logger.With("component", "explorer"))
		if err != nil {
			return fmt.Errorf("migrate indexer: %w", err)
		}
		logger.Info("explorer indexer enabled",
			slog.String("driver", driver),
			slog.String("dsn", logging.MaskDSN(cfg.Indexer.DSN)),
		)
		node.Feed().AddSink(indexer)
		history = indexer
		group.Go(func() error { return indexer.Run(groupCtx) })
	}

	if addr := strings.TrimSpace(cfg.Bus.RedisAddr); addr != "" {
		client, err := bus.NewClient(addr)
		if err != nil {
			return fmt.Errorf("connect bus: %w", err)
		}
		defer client.Close()
		publisher, err := bus.New(client, cfg.Bus.Channel, logger.With("component", "bus"))
		if err != nil {
			return err
		}
		logger.Info("event bus enabled", busLogAttrs(cfg.Bus)...)
		node.Feed().AddSink(publisher)
		group.Go(func() error { return publisher.Run(groupCtx) })
	}

	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		dispatcher, err := webhooks.NewDispatcher(endpoint, []byte(cfg.Webhook.Secret))
		if err != nil {
			return fmt.Errorf("webhooks: %w", err)
		}
		defer dispatcher.Close()
		node.Feed().AddSink(dispatcher)
		logger.Info("settlement webhooks enabled", webhookLogAttrs(cfg.Webhook)...)
	}

	token := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if token == "" {
		logger.Warn("RPC token not configured; state-changing methods are disabled", slog.String("env", rpcTokenEnv))
	}
	server, err := rpc.NewServer(node, history, rpc.ServerConfig{
		AuthToken:          token,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		Burst:              cfg.RPC.Burst,
		EnableFaucet:       strings.EqualFold(cfg.Environment, "dev"),
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	group.Go(func() error { return server.ListenAndServe(groupCtx, cfg.ListenAddress) })

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("marketd stopped")
	return err
}

// busLogAttrs describes the bus sink without exposing credentials that may be
// embedded in the address.
func busLogAttrs(cfg config.BusConfig) []any {
	return []any{
		logging.MaskField("channel", cfg.Channel),
		logging.MaskField("redis_addr", cfg.RedisAddr),
	}
}

// webhookLogAttrs describes the webhook sink. Endpoints often carry tokens in
// the path or query, so neither value is logged verbatim.
func webhookLogAttrs(cfg config.WebhookConfig) []any {
	return []any{
		logging.MaskField("endpoint", cfg.Endpoint),
		logging.MaskField("secret", cfg.Secret),
	}
}
