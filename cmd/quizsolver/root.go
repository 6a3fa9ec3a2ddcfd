package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizsolver/internal/config"
	"quizsolver/internal/logging"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "quizsolver",
	Short: "Automated quiz-chain solver",
	Long: `quizsolver fetches JS-rendered quiz pages, gathers their data files,
resolves answers with an LLM (directly or through generated analysis
code), submits them, and follows the chain to the next question.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}

		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		if err := logging.Initialize(wd, loggingSettings(cfg)); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}

		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.DisableStacktrace = true
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		zlog, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		log = zlog.Sugar()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func loggingSettings(c *config.Config) logging.Settings {
	return logging.Settings{
		DebugMode:  c.Logging.DebugMode,
		Level:      c.Logging.Level,
		JSONFormat: c.Logging.JSONFormat,
		Categories: c.Logging.Categories,
	}
}
