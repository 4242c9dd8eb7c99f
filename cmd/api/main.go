// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/bookstore-backend/internal/infrastructure/database/redis"
	"github.com/your-org/bookstore-backend/internal/interfaces/http"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/routes"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/pkg/email"
	"github.com/your-org/bookstore-backend/internal/pkg/scheduler"
	"github.com/your-org/bookstore-backend/internal/pkg/storage"
)

const jobTimeout = 5 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	logrus.Infof("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Connect to database
	db, err := postgres.NewConnection(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Health check
	healthCtx, cancelHealth := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.Health(healthCtx); err != nil {
		logrus.Fatalf("Database health check failed: %v", err)
	}
	if err := redisClient.Health(healthCtx); err != nil {
		logrus.Fatalf("Redis health check failed: %v", err)
	}
	cancelHealth()

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB())

	if err := migration.RunAutoMigrations(); err != nil {
		logrus.Fatalf("Database migration failed: %v", err)
	}

	if err := migration.CreateIndexes(); err != nil {
		logrus.Warnf("Index creation failed: %v", err)
	}

	// Seed initial data in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			logrus.Warnf("Data seeding failed: %v", err)
		}
		if err := migration.GetTableInfo(); err != nil {
			logrus.Warnf("Table info failed: %v", err)
		}
	}

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialise file storage: %v", err)
	}

	mailer := email.NewEmailService(cfg)
	throttle := middleware.NewDownloadThrottle(cfg.Security.DownloadRatePerMinute, cfg.Security.DownloadBurst)

	// Background jobs
	jobs := scheduler.New(jobTimeout)
	if cfg.Jobs.Enabled {
		if err := registerJobs(jobs, cfg, db, mailer, throttle); err != nil {
			logrus.Fatalf("Failed to register jobs: %v", err)
		}
		jobs.Start()
	}

	logrus.Info("✅ All systems operational!")

	// Create and start HTTP server
	server := http.NewServer(&routes.Dependencies{
		DB:       db.GetDB(),
		Redis:    redisClient,
		Config:   cfg,
		Storage:  store,
		Mailer:   mailer,
		JWT:      auth.NewJWTManager(cfg),
		Throttle: throttle,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logrus.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logrus.Info("👋 Shutting down gracefully...")

	// Give server 30 seconds to shutdown gracefully
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logrus.Errorf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if cfg.Jobs.Enabled {
		jobs.Stop()
	}

	logrus.Info("✅ Server shutdown completed")
}

func setupLogging(cfg *config.Config) {
	if cfg.Logging.Format == "json" || cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func registerJobs(jobs *scheduler.Scheduler, cfg *config.Config, db *postgres.Database, mailer *email.EmailService, throttle *middleware.DownloadThrottle) error {
	orderService := order.NewService(db.GetDB(), cfg, mailer)

	if err := jobs.Register("expire-pending-orders", cfg.Jobs.ExpirePendingOrders, func(ctx context.Context) error {
		n, err := orderService.ExpireStalePending(ctx, cfg.Store.PendingOrderTTL)
		if n > 0 {
			logrus.WithField("orders", n).Info("Expired stale pending orders")
		}
		return err
	}); err != nil {
		return err
	}

	if err := jobs.Register("deactivate-coupons", cfg.Jobs.DeactivateCoupons, func(ctx context.Context) error {
		n, err := coupon.DeactivateExpired(db.GetDB().WithContext(ctx), time.Now())
		if n > 0 {
			logrus.WithField("coupons", n).Info("Deactivated expired coupons")
		}
		return err
	}); err != nil {
		return err
	}

	return jobs.Register("download-throttle-cleanup", "@every 10m", func(ctx context.Context) error {
		throttle.Cleanup()
		return nil
	})
}
