package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/lookalike/internal/config"
	"github.com/kozaktomas/lookalike/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the lookalike HTTP API.

  POST /api/v1/match   photo as multipart field "photo" or raw body
  GET  /api/v1/quota   daily image search quota
  GET  /api/v1/health  dependency probes
  GET  /metrics        Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" && !cmd.Flags().Changed("port") {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" && !cmd.Flags().Changed("host") {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	// Warm the face models so the first request does not pay for the download.
	go func() {
		if err := a.loader.Ensure(ctx); err != nil {
			logger.Warn("face model warm-up failed, will retry on first request", slog.String("error", err.Error()))
		}
	}()

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Dependencies{
		Resolver: a.resolver,
		Quota:    a.quotaReporter(),
		Checks:   a.healthChecks(),
		Gatherer: a.registry,
		Logger:   logger,
	}, port, host)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
