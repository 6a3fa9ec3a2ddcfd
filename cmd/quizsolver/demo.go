package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quizsolver/internal/quizdemo"
)

var demoPort int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Serve a local practice quiz chain",
	Long: `demo serves a six-question practice chain with JS-rendered question
pages, downloadable data files, and a grading endpoint. Point the solver
at http://localhost:<port>/quiz/1 to exercise the full pipeline locally.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVar(&demoPort, "port", 8099, "port to serve the practice chain on")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", demoPort),
		Handler:           quizdemo.New().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Infow("practice chain started", "url", fmt.Sprintf("http://localhost:%d/quiz/1", demoPort))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
