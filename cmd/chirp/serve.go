package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/chirp/internal/config"
	"github.com/alphabot-ai/chirp/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(ServeDeps{}, nil)
}

func newServeCmd(deps ServeDeps, ready chan<- string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Chirp API server",
		Long: `Start the HTTP API. Settings come from defaults, CHIRP_* environment
variables, the --config YAML file, and flags, in increasing priority.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps, ready)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe blocks until the context is cancelled, SIGINT/SIGTERM arrives, or
// the listener fails. ready, when set, receives the bound address.
func runServe(cmd *cobra.Command, deps ServeDeps, ready chan<- string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New("chirp", version, cfg.LogFormat, cfg.DevMode, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg, logger, deps)
	if err != nil {
		logging.LogError(ctx, logger, "startup failed", err)
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.LogError(context.Background(), logger, "close store", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Addr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	logger.Info("chirp listening", "addr", ln.Addr().String(), "db_driver", cfg.DBDriver)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("SERVE_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	<-errCh
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}
