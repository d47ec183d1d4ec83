package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/api"
	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
)

var (
	janitorInterval time.Duration
	outboxRetention time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Detection, escalation, SLO snapshots and learning runs are not scheduled
here; trigger them with their own commands or the ops run endpoints.

Examples:
  tracking-ops serve
  PORT=:9090 tracking-ops serve --janitor-interval 30s`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&janitorInterval, "janitor-interval", time.Minute, "how often expired keys and relayed outbox rows are purged")
	serveCmd.Flags().DurationVar(&outboxRetention, "outbox-retention", 24*time.Hour, "how long relayed outbox rows are kept")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.OnCallSeedFile != "" {
		if err := seedOnCall(ctx, a, a.cfg.OnCallSeedFile); err != nil {
			return err
		}
	}

	if a.cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	opsLimiter := ratelimit.New(a.kv, "ops", a.cfg.Ops.RateLimitMax, a.cfg.Ops.RateLimitWindow)
	router := api.SetupRouter(a.cfg, a.handlers(), opsLimiter, a.reg, a.log)

	srv := &http.Server{
		Addr:              a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go runJanitor(ctx, a)

	errCh := make(chan error, 1)
	go func() {
		// 启动服务器
		a.log.Info("server starting", zap.String("addr", a.cfg.Port), zap.String("env", a.cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runJanitor purges expired keys and relayed outbox rows until ctx ends
func runJanitor(ctx context.Context, a *app) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys, err := a.kv.PurgeExpired(ctx)
			if err != nil {
				a.log.Error("failed to purge expired keys", zap.Error(err))
			}
			rows, err := a.outbox.PurgeRelayed(ctx, time.Now().Add(-outboxRetention))
			if err != nil {
				a.log.Error("failed to purge relayed outbox rows", zap.Error(err))
			}
			if keys > 0 || rows > 0 {
				a.log.Debug("janitor pass", zap.Int64("expired_keys", keys), zap.Int64("outbox_rows", rows))
			}
		}
	}
}
