package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psi-backoffice/psi/cmd/psi/cli"
	"github.com/psi-backoffice/psi/internal/app"
	"github.com/psi-backoffice/psi/internal/auth"
	"github.com/psi-backoffice/psi/internal/observability"
	"github.com/psi-backoffice/psi/internal/platform/cache"
	"github.com/psi-backoffice/psi/internal/platform/db"
	"github.com/psi-backoffice/psi/internal/rbac"
	"github.com/psi-backoffice/psi/internal/sales"
	"github.com/psi-backoffice/psi/internal/sales/customers"
	"github.com/psi-backoffice/psi/internal/sales/orders"
	"github.com/psi-backoffice/psi/internal/shared"
	"github.com/psi-backoffice/psi/internal/view"
	"github.com/psi-backoffice/psi/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		code := runJobs(ctx, cfg, dbpool, logger, os.Args[2:])
		dbpool.Close()
		os.Exit(code)
	}

	if err := serve(ctx, cfg, dbpool, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, dbpool *pgxpool.Pool, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	salesServices, err := app.NewSalesServices(ctx, dbpool, logger, metrics)
	if err != nil {
		return err
	}

	sessionManager := shared.NewSessionManager(redisClient, "psi_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return err
	}

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	rbacMiddleware := rbac.Middleware{Service: rbac.NewService(dbpool), Logger: logger}

	salesHandler := &sales.Handler{
		Customers: customers.NewHandler(logger, salesServices.Customers, templates, csrfManager, rbacMiddleware),
		Orders: orders.NewHandler(logger, salesServices.Orders, salesServices.Customers, salesServices.Products,
			templates, csrfManager, rbacMiddleware),
	}

	inspector := asynq.NewInspector(cfg.RedisOptions().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		SalesHandler:   salesHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, dbpool *pgxpool.Pool, logger *slog.Logger, args []string) int {
	salesServices, err := app.NewSalesServices(ctx, dbpool, logger, nil)
	if err != nil {
		logger.Error("init sales services", slog.Any("error", err))
		return 1
	}
	redisOpt := cfg.RedisOptions().AsynqOpt()
	client := asynq.NewClient(redisOpt)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	jobsCLI := &cli.JobsCLI{
		Client:     client,
		Inspector:  inspector,
		Reconciler: jobs.NewCascadeReconcileJob(salesServices.Orders, logger, nil),
	}
	return jobsCLI.Run(ctx, args)
}
