package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
	"tickd/internal/application/service"
	"tickd/internal/application/usecase/ingest"
	"tickd/internal/domain"
	"tickd/internal/infrastructure/alert"
	"tickd/internal/infrastructure/config"
	"tickd/internal/infrastructure/exchange/binance"
	"tickd/internal/infrastructure/logger"
	"tickd/internal/infrastructure/storage/composite"
	"tickd/internal/infrastructure/storage/postgres"
	redisrepo "tickd/internal/infrastructure/storage/redis"
	"tickd/internal/infrastructure/storage/sqlite"
	"tickd/internal/infrastructure/stream"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger.Setup(*debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// durable store
	repo, err := openRepo(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open storage failed")
	}
	defer repo.Close()

	// alerting: log always, durable log table always, slack when configured
	minLevel, err := alert.ParseLevel(cfg.Alert.MinLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("bad alert.min_level")
	}
	sinks := []alert.Sink{alert.NewLogSink(), alert.NewStoreSink(repo)}
	if cfg.Alert.SlackWebhookURL != "" {
		sinks = append(sinks, alert.NewSlackSink(cfg.Alert.SlackWebhookURL, cfg.Alert.SlackChannel, minLevel))
	}
	alerts := alert.NewDispatcher(cfg.Alert.QueueSize, sinks...)
	defer alerts.Close()

	// exchange clients
	instruments := binance.NewInstrumentClient(cfg.Exchange.Binance.RestURL)
	var trading port.TradingGateway
	if key := os.Getenv(cfg.Exchange.Binance.APIKeyEnv); key != "" {
		secret := os.Getenv(cfg.Exchange.Binance.APISecretEnv)
		trading = binance.NewOrderClient(binance.NewAPIClient(cfg.Exchange.Binance.RestURL, key, secret))
		log.Info().Msg("trading gateway enabled")
	} else {
		log.Warn().Msg("no api key in environment, order placement disabled")
	}

	// ingest pipeline
	registry := domain.NewRegistry(domain.NewChangePolicy(cfg.Policy.Threshold))
	router := stream.NewRouter(cfg.Stream.Workers, cfg.Stream.QueueSize, cfg.GraceTimeout(), alerts)
	conn := stream.NewConn(cfg.Exchange.Binance.WsURL, stream.ReconnectPolicy{
		MaxRetries:   cfg.Stream.MaxRetries,
		InitialDelay: cfg.InitialDelay(),
		MaxDelay:     cfg.MaxDelay(),
	}, router, alerts)

	handler := service.NewTickerService(registry, repo, alerts)
	if trading != nil {
		handler.WithTradingGateway(trading)
	}

	svc := ingest.NewService(ingest.ServiceDeps{
		Conns:      []port.StreamConn{conn},
		Universe:   instruments,
		Registry:   registry,
		Handler:    handler,
		Decoder:    binance.DecodeTicker,
		Topic:      binance.TickerTopic,
		Symbols:    cfg.App.Symbols,
		QuoteAsset: cfg.App.QuoteAsset,
		Alerts:     alerts,
	})

	if err := svc.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}

	log.Info().
		Str("config", *configPath).
		Str("ws", cfg.Exchange.Binance.WsURL).
		Int("instruments", registry.Len()).
		Float64("threshold", cfg.Policy.Threshold).
		Msg("tickd started")

	err = svc.Run(ctx)
	router.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("ingest exited")
		os.Exit(1)
	}
	log.Info().Uint64("alerts_dropped", alerts.Dropped()).Msg("tickd stopped")
}

func openRepo(cfg *config.Config) (port.Repository, error) {
	var durable port.Repository
	var err error
	switch cfg.Storage.Driver {
	case "postgres":
		durable, err = postgres.New(cfg.Storage.PostgresDSN)
	default:
		durable, err = sqlite.New(cfg.Storage.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Redis.Enabled {
		return durable, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	return composite.New(durable, redisrepo.New(rdb, cfg.Redis.Prefix, cfg.RedisTTL())), nil
}
