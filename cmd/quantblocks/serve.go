package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantblocks/quantblocks/internal/api"
	"github.com/quantblocks/quantblocks/internal/backtest"
	"github.com/quantblocks/quantblocks/internal/config"
	"github.com/quantblocks/quantblocks/internal/forward"
	"github.com/quantblocks/quantblocks/internal/logger"
	"github.com/quantblocks/quantblocks/internal/marketdata"
	"github.com/quantblocks/quantblocks/internal/marketdata/binance"
	"github.com/quantblocks/quantblocks/internal/marketdata/yahoo"
	"github.com/quantblocks/quantblocks/internal/metrics"
	"github.com/quantblocks/quantblocks/internal/notifier"
	"github.com/quantblocks/quantblocks/internal/notifier/webhook"
	"github.com/quantblocks/quantblocks/internal/portfolio"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the QuantBlocks server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log.Info("starting QuantBlocks server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Data.Provider),
	)

	source := newSource(cfg)
	reg := metrics.NewRegistry()

	registry := forward.NewRegistry(forward.Config{
		Source:       source,
		Notifiers:    newNotifiers(cfg, log),
		Metrics:      reg,
		Logger:       log,
		WindowSize:   cfg.Forward.WindowSize,
		ErrorBackoff: cfg.Forward.ErrorBackoff,
	})

	server := api.NewServer(cfg, api.Deps{
		Engine:     backtest.New(source, log),
		Strategies: strategy.NewStore(),
		Portfolios: portfolio.NewStore(),
		Registry:   registry,
		Metrics:    reg,
		Logger:     log,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	registry.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// newSource builds the market data source named by the config. Validate
// has already rejected unknown providers.
func newSource(cfg *config.Config) marketdata.Source {
	switch cfg.Data.Provider {
	case "binance":
		return binance.New()
	default:
		return yahoo.New()
	}
}

// newNotifiers builds the notifier registry from config. A notifier
// that fails to register is skipped, never fatal.
func newNotifiers(cfg *config.Config, log *zap.Logger) *notifier.Registry {
	registry := notifier.NewRegistry()
	for name, nc := range cfg.Notifiers {
		if !nc.Enabled {
			continue
		}
		if err := registry.Register(webhook.New(name, nc.URL, nc.Headers)); err != nil {
			log.Warn("skipping notifier",
				zap.String("notifier", name),
				zap.Error(err))
			continue
		}
		log.Info("notifier registered", zap.String("notifier", name))
	}
	return registry
}
