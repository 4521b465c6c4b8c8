// Package main provides the main entry point for the InboxGlow warmup service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/inboxglow/inboxglow/app/handlers"
	"github.com/inboxglow/inboxglow/app/middleware"
	"github.com/inboxglow/inboxglow/app/router"
	"github.com/inboxglow/inboxglow/app/scheduler"
	"github.com/inboxglow/inboxglow/app/services"
	businessflow "github.com/inboxglow/inboxglow/business_flow"
	"github.com/inboxglow/inboxglow/config"
	_ "github.com/inboxglow/inboxglow/docs"
	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/queue"
	"github.com/inboxglow/inboxglow/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting InboxGlow application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.SenderAccount{},
		&models.PoolAccount{},
		&models.WarmupSession{},
		&models.RampScheduleEntry{},
		&models.WarmupMetric{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	senderRepo := repository.NewSenderAccountRepository(db)
	poolRepo := repository.NewPoolAccountRepository(db)
	sessionRepo := repository.NewWarmupSessionRepository(db)
	rampRepo := repository.NewRampScheduleRepository(db)
	metricRepo := repository.NewWarmupMetricRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// External providers, gateway or mock per config
	mailSender := services.NewMailSender(&cfg.Services)
	contentGen := services.NewContentGenerator(&cfg.Services)
	engagement := services.NewEngagementSimulator(&cfg.Services)
	reputation := services.NewReputationProvider(&cfg.Services)

	// Task queue backed by redis when available
	var tasks queue.TaskQueue
	if rc != nil {
		tasks = queue.NewRedisQueue(rc, cfg.Queue.Prefix)
	} else {
		log.Println("Redis unavailable, using in-memory task queue")
		tasks = queue.NewMemoryQueue()
	}

	// Initialize flows
	poolFlow := businessflow.NewPoolFlow(
		poolRepo,
		&cfg.Pool,
		&cfg.Security,
		db,
	)

	rampFlow := businessflow.NewRampFlow(&cfg.Warmup, 0)

	warmupFlow := businessflow.NewWarmupFlow(
		senderRepo,
		sessionRepo,
		rampRepo,
		metricRepo,
		poolRepo,
		poolFlow,
		rampFlow,
		tasks,
		mailSender,
		contentGen,
		engagement,
		reputation,
		&cfg.Warmup,
		&cfg.Security,
		&cfg.Cache,
		db,
		rc,
	)

	reportFlow := businessflow.NewReportFlow(
		senderRepo,
		sessionRepo,
		rampRepo,
		metricRepo,
	)

	// Stage workers draining the task queue
	processor := queue.NewProcessor(tasks, cfg.Queue, log.Default())
	processor.Register(queue.TaskSend, queue.ExecutorFunc(warmupFlow.ExecuteSendTask))
	processor.Register(queue.TaskReceive, queue.ExecutorFunc(warmupFlow.ExecuteReceiveTask))
	processor.Register(queue.TaskEngage, queue.ExecutorFunc(warmupFlow.ExecuteEngageTask))
	processor.Register(queue.TaskRescue, queue.ExecutorFunc(warmupFlow.ExecuteRescueTask))
	processor.Register(queue.TaskReputationCheck, queue.ExecutorFunc(warmupFlow.ExecuteReputationCheck))
	processor.Start(context.Background())
	stopFuncs = append(stopFuncs, processor.Stop)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(tokenService, cfg.Security)
	warmupHandler := handlers.NewWarmupHandler(warmupFlow)
	poolHandler := handlers.NewPoolHandler(poolFlow, reportFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authHandler,
		warmupHandler,
		poolHandler,
		authMiddleware,
	)

	// Daily maintenance plus active-session scheduling
	sched := scheduler.NewMaintenanceScheduler(
		warmupFlow,
		poolFlow,
		rc,
		cfg.Warmup,
		cfg.Cache,
		cfg.Warmup.MaintenanceInterval,
	)
	stopScheduler := sched.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
