package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cratedigger/internal/adapters/rest"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/websocket"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis API and job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerFor(cmd)
			if addr := strings.TrimSpace(bind); addr != "" {
				cfg.Server.Bind = addr
			}

			lock, err := acquireLock(cfg)
			if err != nil {
				return err
			}
			defer releaseLock(lock)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			checkDependencies(runCtx, cfg, logger)

			hub := websocket.NewHub(cfg.Server.CORSOrigins, logger)
			go hub.Run(runCtx)

			a, err := newApp(runCtx, cfg, hub, logger)
			if err != nil {
				return err
			}
			defer a.close()

			a.pool.Start(runCtx, 1)
			failed, requeued, err := a.jobs.RecoverStale(runCtx)
			if err != nil {
				return err
			}
			if failed > 0 || requeued > 0 {
				logger.Info("recovered jobs from previous run", "failed", failed, "requeued", requeued)
			}

			if cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			handler := rest.NewHandler(a.jobs, a.store, a.library, rest.Options{
				AllowedOrigins: cfg.Server.CORSOrigins,
				Progress:       hub,
				Store:          a.store,
				Logger:         logger,
			})

			srv := &http.Server{
				Addr:              cfg.Server.Bind,
				Handler:           handler,
				ReadHeaderTimeout: 15 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				err := srv.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
					return
				}
				serverErr <- nil
			}()
			logger.Info("api listening", "addr", cfg.Server.Bind, "database", cfg.Paths.Database)

			select {
			case err := <-serverErr:
				stop()
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-runCtx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("shutdown error", "error", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}
