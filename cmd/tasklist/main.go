package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tasklist/internal/config"
	"tasklist/internal/server"
	"tasklist/internal/storage/sqlite"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the command line and returns the process exit code. Any
// failure, including flag and config errors, is logged to stderr.
func run(args []string, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		logger := slog.New(slog.NewTextHandler(stderr, nil))
		logger.Error("tasklist failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cfg, loadErr := config.Load()

	root := &cobra.Command{
		Use:           "tasklist",
		Short:         "Personal task list server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			return cfg.Validate()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to sqlite database file")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flags.IntVar(&cfg.MaxOpenConns, "max-conns", cfg.MaxOpenConns, "Maximum open database connections")
	flags.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Lifetime of a login session")

	root.AddCommand(newServeCmd(&cfg), newMigrateCmd(&cfg))
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	cmd.Flags().BoolVar(&cfg.CookieSecure, "cookie-secure", cfg.CookieSecure, "Mark the session cookie Secure (HTTPS only)")
	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and purge expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cfg.LogLevel)
			store, err := openStore(*cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			purged, err := purgeSessions(cmd.Context(), store)
			if err != nil {
				logger.Error("purge sessions", slog.String("error", err.Error()))
				return err
			}
			logger.Info("schema up to date", slog.String("db", cfg.DBPath), slog.Int64("expired_sessions_removed", purged))
			return nil
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	logger.Info("tasklist starting", slog.String("db", cfg.DBPath))

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if purged, err := purgeSessions(ctx, store); err != nil {
		logger.Warn("purge sessions", slog.String("error", err.Error()))
	} else if purged > 0 {
		logger.Info("expired sessions removed", slog.Int64("count", purged))
	}

	srv := server.New(store, logger, server.Options{CookieSecure: cfg.CookieSecure})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}

func openStore(cfg config.Config, logger *slog.Logger) (*sqlite.Store, error) {
	store, err := sqlite.Open(sqlite.Options{
		Path:         cfg.DBPath,
		MaxOpenConns: cfg.MaxOpenConns,
		SessionTTL:   cfg.SessionTTL,
	}, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func purgeSessions(ctx context.Context, store *sqlite.Store) (int64, error) {
	h, err := store.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer h.Release()
	return h.PurgeExpiredSessions(ctx)
}

func newLogger(level string) *slog.Logger {
	lvl, _ := config.ParseLevel(level)
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
