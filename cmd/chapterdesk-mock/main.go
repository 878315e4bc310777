package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/mockapi"
)

const shutdownTimeout = 10 * time.Second

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("unable to prepare logs: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store := mockapi.NewStore()
	if cmd.Bool("seed") {
		chapterID, err := mockapi.Seed(store)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("Seeded demo library", zap.String("first_chapter", chapterID))
	}

	srv := &http.Server{
		Addr:              cmd.String("addr"),
		Handler:           mockapi.NewRouter(store, mockapi.NewHub(logger), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:            "chapterdesk-mock",
		Usage:           "in-memory book API for trying chapterdesk without a backend",
		HideHelpCommand: true,
		Action:          serve,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8080", Usage: "listen `ADDRESS`"},
			&cli.BoolFlag{Name: "seed", Value: true, Usage: "load the demo library"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "development logging"},
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "\n*ERROR*: %s\n", err)
		os.Exit(1)
	}
}
