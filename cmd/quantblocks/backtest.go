package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantblocks/quantblocks/internal/backtest"
	"github.com/quantblocks/quantblocks/internal/config"
	"github.com/quantblocks/quantblocks/internal/logger"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

var (
	backtestSymbol  string
	backtestFrom    string
	backtestTo      string
	backtestCapital float64
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy.json]",
	Short: "Run a strategy against historical data",
	Long: `Run a strategy definition against historical market data and print
the result, including the trade log and performance metrics, as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "Initial capital (defaults to config)")

	backtestCmd.MarkFlagRequired("symbol")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading strategy file: %w", err)
	}
	def, err := strategy.ParseJSON(data)
	if err != nil {
		return fmt.Errorf("parsing strategy: %w", err)
	}

	from, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
	}
	to, err := time.Parse("2006-01-02", backtestTo)
	if err != nil {
		return fmt.Errorf("invalid to date (expected YYYY-MM-DD): %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("end date must be after start date")
	}

	capital := backtestCapital
	if capital <= 0 {
		capital = cfg.Backtest.InitialCapital
	}

	engine := backtest.New(newSource(cfg), log)
	result := engine.Run(context.Background(), backtest.Request{
		Strategy:       def,
		Symbol:         backtestSymbol,
		Start:          from,
		End:            to,
		InitialCapital: capital,
	})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))

	if result.Status == backtest.StatusFailed {
		return fmt.Errorf("backtest failed: %s", result.Error)
	}
	return nil
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
