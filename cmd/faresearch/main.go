package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tripgrid/faresearch/pkg/config"
	"github.com/tripgrid/faresearch/pkg/logging"
	"github.com/tripgrid/faresearch/pkg/metrics"
	"github.com/tripgrid/faresearch/pkg/server/aggregate"
	"github.com/tripgrid/faresearch/pkg/server/api"
	"github.com/tripgrid/faresearch/pkg/server/inventory"
	"github.com/tripgrid/faresearch/pkg/server/rates"
	"github.com/tripgrid/faresearch/pkg/version"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("faresearch version %s\n", version.Version)
		os.Exit(0)
	}

	// Local overrides for secrets like FARESEARCH_RATES_API_KEY; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting faresearch", "version", version.Version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- runServer(ctx, cfg, logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
			cancel()
		}
	}

	logger.Info("Shutdown complete")
}

func runServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	// Currency conversion: keyed primary first when a key is configured,
	// the free fallback always last.
	var rateProviders []rates.Provider
	if cfg.Rates.APIKey != "" {
		rateProviders = append(rateProviders,
			rates.NewExchangeRateHostProvider(cfg.Rates.APIKey, cfg.Rates.BaseURL, cfg.Rates.Timeout.ToDuration()))
	} else {
		logger.Warn("No rates API key configured, using free fallback endpoint only")
	}
	rateProviders = append(rateProviders,
		rates.NewFrankfurterProvider(cfg.Rates.Fallback, cfg.Rates.Timeout.ToDuration()))

	rateCache := rates.NewCache(cfg.Rates.CacheTTL.ToDuration())
	converter := rates.NewConverter(rateProviders, rateCache, logger)

	// Inventory providers
	var providers []inventory.Provider
	for _, pCfg := range cfg.Providers {
		if !pCfg.Enabled {
			continue
		}
		logger.Info("Initializing provider", "name", pCfg.Name, "url", pCfg.URL)
		providers = append(providers, inventory.NewHTTPProvider(pCfg.Name, pCfg.URL, pCfg.Timeout.ToDuration()))
	}
	if len(providers) == 0 {
		return fmt.Errorf("no providers available")
	}

	fanout := inventory.NewFanout(providers, cfg.Server.SearchTimeout.ToDuration(), logger)

	unpriced, err := aggregate.ParseUnpricedPolicy(cfg.Server.UnpricedPolicy)
	if err != nil {
		return err
	}
	agg := aggregate.New(converter, aggregate.Options{
		Currency:  cfg.Server.Currency,
		SourceCap: cfg.Server.SourceCap,
		Unpriced:  unpriced,
	}, logger)

	server := api.NewServer(cfg.Server.HTTP.Addr, fanout, agg, converter, cfg.Server.CacheTTL.ToDuration(), logger)

	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		server.SetWebSocketServer(wsServer)
		converter.Subscribe(wsServer.RateUpdates())

		go func() {
			if err := wsServer.Start(ctx); err != nil {
				logger.Error("WebSocket server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if wsServer != nil {
			wsServer.Stop()
		}
	}()

	return server.Start()
}
