package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jebjergk/MIP-sub000/internal/api"
	"github.com/jebjergk/MIP-sub000/internal/api/handlers"
	"github.com/jebjergk/MIP-sub000/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                  - Warehouse / redis health
  GET  /metrics                 - Prometheus metrics (METRICS_ENABLED)
  GET  /api/training/status     - Maturity per (market, symbol, pattern, interval)
  GET  /api/training/timeline   - Training timeline of one symbol/pattern/horizon

Example:
  go run ./cmd/mip api
  go run ./cmd/mip api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	var limiter *api.RateLimiter
	if a.cfg.RateLimit.Enabled {
		limiter, err = api.NewRateLimiter(
			redis.NewRateLimiter(a.redis, "mip"),
			api.RateLimitOptions{
				RPS:            a.cfg.RateLimit.RPS,
				Burst:          a.cfg.RateLimit.Burst,
				TrustedProxies: a.cfg.RateLimit.TrustedProxies,
				MaxClients:     a.cfg.RateLimit.MaxClients,
				IdleTTL:        a.cfg.RateLimit.IdleTTL,
			},
			a.metrics,
			a.log,
		)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	router := api.NewRouter(api.RouterDeps{
		Training: handlers.NewTrainingHandler(a.training, a.log),
		Health:   handlers.NewHealthHandler(a.db, a.redis, a.redis.Enabled(), version, a.log),
		Metrics:  a.metrics,
		Limiter:  limiter,
		Logger:   a.log,
	})
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("server stopped unexpectedly")
	case <-quit:
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
