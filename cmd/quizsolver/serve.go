package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quizsolver/internal/chain"
	"quizsolver/internal/config"
	"quizsolver/internal/fetch"
	"quizsolver/internal/llm"
	"quizsolver/internal/logging"
	"quizsolver/internal/sandbox"
	"quizsolver/internal/server"
	"quizsolver/internal/store"
	"quizsolver/internal/strategy"
	"quizsolver/internal/synth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook service that accepts quiz URLs",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var runs *store.RunStore
	if cfg.Store.Enabled {
		var err error
		runs, err = store.Open(cfg.Store.DatabasePath)
		if err != nil {
			log.Warnw("run history disabled", "error", err)
		} else {
			defer runs.Close()
		}
	}

	client, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		return err
	}

	runner, err := sandbox.NewRunner(cfg.Solver.Python(), cfg.Solver.ExecutionDeadline())
	if err != nil {
		return err
	}
	defer runner.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Each accepted request gets its own chain run with a private
	// browser; the LLM client, sandbox runner, and store are shared.
	launch := func(url string) string {
		runID := chain.NewRunID()
		go func() {
			fetcher := fetch.NewFetcher(cfg.Browser, nil)
			defer fetcher.Close()

			orch := chain.New(cfg, chain.Deps{
				Fetcher:   fetcher,
				Selector:  strategy.NewSelector(client),
				Synth:     synth.New(client, cfg.Operator.Email),
				Runner:    runner,
				Submitter: chain.NewHTTPSubmitter(cfg.Operator.Email, cfg.Operator.Secret, nil),
				Recorder:  runs,
			})
			result, err := orch.RunAs(ctx, runID, url)
			if err != nil {
				log.Errorw("chain run failed", "run", runID, "url", url, "error", err)
				return
			}
			log.Infow("chain run finished",
				"run", result.RunID,
				"status", result.Status,
				"questions", len(result.Questions),
				"solved", result.Solved())
		}()
		return runID
	}

	srv := server.New(cfg, launch)

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		logging.Reconfigure(loggingSettings(next))
		log.Infow("configuration reloaded", "path", configPath)
	})
	if err != nil {
		log.Warnw("config watching disabled", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			log.Warnw("config watching disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Infow("webhook service started", "addr", cfg.Server.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Info("webhook service stopped")
	return nil
}
