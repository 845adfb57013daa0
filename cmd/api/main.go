package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sandboxapi/docs"
	"sandboxapi/internal/config"
	"sandboxapi/internal/database"
	"sandboxapi/internal/database/migration"
	handlers "sandboxapi/internal/http/handler"
	"sandboxapi/internal/http/middleware"
	otelinit "sandboxapi/internal/otel"
	"sandboxapi/internal/repository/postgres"
	"sandboxapi/internal/sandbox"
	"sandboxapi/internal/service"
	"sandboxapi/internal/storage"
)

// @title Sandbox API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing (degrades to noop when the exporter is unreachable)
	otelShutdown, err := otelinit.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Two runners: submitted code gets the long policy, the built-in transform
	// the short one.
	execRunner := sandbox.NewDockerRunner(sandbox.Policy{
		Memory:     cfg.Sandbox.Memory,
		CPUShares:  cfg.Sandbox.CPUShares,
		MaxTimeout: time.Duration(cfg.Sandbox.ExecTimeoutSec) * time.Second,
		Network:    cfg.Sandbox.Network,
		Images:     []string{cfg.Sandbox.Image},
	})
	transformRunner := sandbox.NewDockerRunner(sandbox.Policy{
		Memory:     cfg.Sandbox.Memory,
		CPUShares:  cfg.Sandbox.CPUShares,
		MaxTimeout: time.Duration(cfg.Sandbox.RunTimeoutSec) * time.Second,
		Network:    cfg.Sandbox.Network,
		Images:     []string{cfg.Sandbox.TransformImage},
	})

	// Metrics registry shared by HTTP middleware and the executor
	reg := prometheus.NewRegistry()
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}
	execMetrics, err := service.NewExecMetrics(reg)
	if err != nil {
		log.Fatalf("failed to register execution metrics: %v", err)
	}

	// Initialize repositories and services
	jobRepo := postgres.NewJobPostgres(db)
	executor := service.NewExecutor(objStore, jobRepo, execRunner, cfg.Sandbox, execMetrics)
	jobSvc := service.NewJobService(objStore, jobRepo, executor, cfg.Upload)
	transformSvc := service.NewTransformService(transformRunner, cfg.Sandbox, cfg.Upload)

	janitor := service.NewJanitor(objStore, jobRepo, cfg.Retention)
	janitor.Start()

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxSizeBytes) + 1024*1024,
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())
	app.Use(promMW.Handler())

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, db, jobSvc, transformSvc)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	// Drain: stop accepting requests, let in-flight executions finish, flush traces.
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	janitor.Stop()
	executor.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
