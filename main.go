package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rektflow/config"
	"rektflow/internal/alert"
	"rektflow/internal/channel"
	"rektflow/internal/cluster"
	"rektflow/internal/enrich"
	binancefeed "rektflow/internal/feed/binance"
	bybitfeed "rektflow/internal/feed/bybit"
	"rektflow/internal/health"
	"rektflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	log.WithFields(logger.Fields{
		"service":     cfg.Rektflow.Name,
		"version":     cfg.Rektflow.Version,
		"environment": env,
	}).Info("starting rektflow")

	if config.IsProductionLike(env) && !cfg.Notifier.Telegram.Enabled {
		log.WithComponent("main").Warn("telegram notifier disabled in a production-like environment")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer)
	defer channels.Close()

	go channels.StartMetricsReporting(ctx)

	provider, err := enrich.NewProvider(cfg.Enrichment)
	if err != nil {
		log.WithError(err).Error("failed to create enrichment provider")
		os.Exit(1)
	}
	cache := enrich.NewCache(provider, cfg.Enrichment.CacheTTL)

	var notifier alert.Notifier
	if cfg.Notifier.Telegram.Enabled {
		notifier = alert.NewTelegramNotifier(cfg.Notifier.Telegram)
	} else {
		log.WithComponent("main").Info("telegram disabled; alerts go to the log")
		notifier = alert.NewLogNotifier()
	}

	dispatcher := alert.NewDispatcher(cfg, cache, notifier)
	if err := dispatcher.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start alert dispatcher")
		os.Exit(1)
	}

	aggregator := cluster.NewAggregator(cfg.Aggregator)
	processor := cluster.NewProcessor(cfg, channels.Liquidations, aggregator, dispatcher)
	if err := processor.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start cluster processor")
		os.Exit(1)
	}

	var binanceReader *binancefeed.Reader
	if cfg.Feed.Binance.Enabled {
		binanceReader = binancefeed.NewReader(cfg, channels.Liquidations)
		if err := binanceReader.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start binance liquidation feed")
			os.Exit(1)
		}
	}

	var bybitReader *bybitfeed.Reader
	if cfg.Feed.Bybit.Enabled {
		bybitReader = bybitfeed.NewReader(cfg, channels.Liquidations)
		if err := bybitReader.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start bybit liquidation feed")
			os.Exit(1)
		}
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(cfg.Health)
		go func() {
			if err := healthServer.Run(); err != nil {
				log.WithError(err).Warn("health server exited")
			}
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if binanceReader != nil {
		binanceReader.Stop()
	}
	if bybitReader != nil {
		bybitReader.Stop()
	}

	processor.Stop()
	dispatcher.Stop()

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("health server shutdown failed")
		}
		shutdownCancel()
	}

	log.Info("rektflow stopped")
}
