// Package main provides the main entry point for the AdOps scheduling platform
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
	"github.com/podscale/adops/app/handlers"
	"github.com/podscale/adops/app/middleware"
	"github.com/podscale/adops/app/router"
	"github.com/podscale/adops/app/services"
	businessflow "github.com/podscale/adops/business_flow"
	"github.com/podscale/adops/config"
	"github.com/podscale/adops/models"
	"github.com/podscale/adops/pkg/logging"
	"github.com/podscale/adops/repository"
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
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.Init(logging.Config{
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})

	log.Println("Starting AdOps application...")

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Setup graceful shutdown
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
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

	// The organization registry and audit tables live in the shared
	// public schema. Tenant schemas are provisioned on demand.
	if err := db.AutoMigrate(models.PublicModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate public schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
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
	if client == nil {
		return func() {}
	}
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

// startReservationReaper sweeps expired inventory holds across every active
// tenant. The returned cancel function stops the sweeper.
func startReservationReaper(
	parent context.Context,
	orgRepo repository.OrganizationRepository,
	commitFlow businessflow.CommitFlow,
	interval time.Duration,
) func() {
	reaperCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-reaperCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 2*time.Minute)
				sweepExpiredReservations(ctx, orgRepo, commitFlow)
				c()
			}
		}
	}()
	return cancel
}

func sweepExpiredReservations(ctx context.Context, orgRepo repository.OrganizationRepository, commitFlow businessflow.CommitFlow) {
	orgs, err := orgRepo.ListActive(ctx)
	if err != nil {
		log.Printf("Reservation sweep failed to list organizations: %v", err)
		return
	}

	for _, org := range orgs {
		p := models.Partition{Schema: org.SchemaName}
		if !p.Valid() {
			continue
		}
		released, err := commitFlow.ReleaseExpiredReservations(ctx, p)
		if err != nil {
			log.Printf("Reservation sweep failed for %s: %v", org.SchemaName, err)
			continue
		}
		if released > 0 {
			log.Printf("Released %d expired reservations in %s", released, org.SchemaName)
		}
	}
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

	cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
	stopFuncs = append(stopFuncs, cancel)

	// Tenant schemas are provisioned over a dedicated connection whose
	// search_path is pinned to the new schema.
	openSchema := func(schema string) (*gorm.DB, error) {
		dsn := fmt.Sprintf("%s search_path=%s", cfg.Database.DSN(), schema)
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}

	// Initialize repositories
	orgRepo := repository.NewOrganizationRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	auditRepo := repository.NewCrossTenantAuditRepository(db)
	provisioner := repository.NewTenantProvisioner(db, openSchema)
	showRepo := repository.NewShowRepository(db)
	episodeRepo := repository.NewEpisodeRepository(db)
	rateCardRepo := repository.NewRateCardRepository(db)
	spotRepo := repository.NewSpotRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	tenantFlow := businessflow.NewTenantFlow(
		orgRepo,
		membershipRepo,
		auditRepo,
		provisioner,
	)

	conflictFlow := businessflow.NewConflictFlow(
		campaignRepo,
		spotRepo,
		directoryRepo,
	)

	allocationFlow := businessflow.NewAllocationFlow(
		showRepo,
		episodeRepo,
		rateCardRepo,
		spotRepo,
		reservationRepo,
		campaignRepo,
		directoryRepo,
		conflictFlow,
		cfg.Scheduling.RelaxedWindowDays,
	)

	availabilityFlow := businessflow.NewAvailabilityFlow(
		showRepo,
		episodeRepo,
		rateCardRepo,
		spotRepo,
		reservationRepo,
		rc,
		cfg.Cache.AvailabilityTTL,
	)

	commitFlow := businessflow.NewCommitFlow(
		db,
		allocationFlow,
		spotRepo,
		episodeRepo,
		reservationRepo,
		rateCardRepo,
		campaignRepo,
		idempotencyRepo,
		activityRepo,
		cfg.Scheduling.IdempotencyRetainFor,
	)

	stopReaper := startReservationReaper(context.Background(), orgRepo, commitFlow, cfg.Scheduling.ReaperInterval)
	stopFuncs = append(stopFuncs, stopReaper)

	// Initialize handlers
	scheduleHandler := handlers.NewScheduleHandler(tenantFlow, allocationFlow, commitFlow, conflictFlow)
	inventoryHandler := handlers.NewInventoryHandler(tenantFlow, availabilityFlow, commitFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authMiddleware,
		scheduleHandler,
		inventoryHandler,
		cfg.Security.AllowedOrigins,
	)

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
