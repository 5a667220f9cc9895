package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"petmatch/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Load the index, then serve similarity queries over HTTP and index new
animals every server.refresh_interval.

Endpoints:
  GET  /api/animals/{id}/similar?k=N
  POST /api/index/refresh
  GET  /health, /ready, /live`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Gops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			logger.Warn("gops agent failed to start", "error", err)
		} else {
			defer agent.Close()
		}
	}

	a, err := buildApp(ctx, cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	health := server.NewHealth(Version)
	health.RegisterCheck("database", server.DatabaseHealthChecker(a.store.Ping))
	health.RegisterCheck("vector_index", server.VectorIndexHealthChecker(cfg.Vector.Backend, a.index.Count))

	rec := a.recommender()
	if err := rec.Load(ctx, nil); err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}
	health.SetReady(true)
	logger.Info("index loaded", "animals", rec.Indexed(), "backend", cfg.Vector.Backend)

	srv := server.New(rec, health, logger).HTTPServer(cfg.Server.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return rec.Run(gctx, cfg.Server.RefreshInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		health.SetReady(false)
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
