package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop from a config file",
	Long: `Run the paper trading loop using settings from a configuration file.

Persisted state for the configured environment is restored on start and
saved on shutdown. SIGINT or SIGTERM stops the loop cleanly.

Example:
  trader run -f trader.yaml
  trader run -f trader.yaml --reset`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runConfigPath string
	runReset      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runReset, "reset", false, "discard persisted state and start from the deposit")
	runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, runReset, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Warn("close", zap.Error(err))
		}
	}()

	log.Info("trader starting",
		zap.String("session", a.session),
		zap.String("environment", cfg.Environment),
		zap.String("feed", cfg.Feed.Kind),
		zap.String("strategy", cfg.Strategy.Name),
		zap.Bool("reset", runReset),
		zap.Float64("equity", a.store.Equity()),
	)

	return a.trader.Run(ctx)
}
