package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"towdispatch/internal/app"
	"towdispatch/internal/bus"
	"towdispatch/internal/config"
	"towdispatch/internal/geo"
	"towdispatch/internal/handler"
	"towdispatch/internal/pricing"
	internalRedis "towdispatch/internal/redis"
	"towdispatch/internal/repository/postgres"
	"towdispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores and the event bus.
	sessionStore := internalRedis.NewTrackingSessionStore(redisClient)
	throttleStore := internalRedis.NewThrottleStore(redisClient)
	eventBus := bus.NewRedisBus(redisClient)

	// Initialize repositories.
	bookingRepo := postgres.NewBookingRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	locationRepo := postgres.NewLocationUpdateRepository(db)

	// Initialize pricing policies. The booking estimator prices
	// submissions; the calculator serves the pre-sales estimate page.
	bookingEstimator := pricing.NewBookingEstimator()
	calculator := pricing.NewCalculatorEstimator()

	resolver := geo.NewResolver(&http.Client{Timeout: 10 * time.Second})

	var mailer service.Mailer
	if cfg.Mail.ResendAPIKey != "" {
		mailer = service.NewResendMailer(cfg.Mail.ResendAPIKey, cfg.Mail.FromAddress)
	} else {
		mailer = service.LogMailer{}
	}

	// Initialize services.
	authService := service.NewAuthService(driverRepo, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	bookingService := service.NewBookingService(bookingRepo, driverRepo, locationRepo, bookingEstimator, eventBus, mailer, service.BookingServiceConfig{
		DepotLat:          cfg.Dispatch.DepotLat,
		DepotLng:          cfg.Dispatch.DepotLng,
		PublicBaseURL:     cfg.Dispatch.PublicBaseURL,
		DefaultDriverName: cfg.Dispatch.DefaultDriverName,
	})
	dispatchService := service.NewDispatchService(postgres.NewCompletionStore(db), bookingRepo, driverRepo, locationRepo, sessionStore, eventBus)
	trackingService := service.NewTrackingService(driverRepo, bookingRepo, locationRepo, sessionStore, throttleStore, resolver, eventBus)

	// Initialize handlers.
	bookingHandler := handler.NewBookingHandler(bookingService, resolver, calculator)
	driverHandler := handler.NewDriverHandler(authService, bookingService, dispatchService, trackingService)
	trackingHandler := handler.NewTrackingHandler(bookingService)
	wsHandler := handler.NewWSHandler(bookingService, eventBus)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		BookingHandler:  bookingHandler,
		DriverHandler:   driverHandler,
		TrackingHandler: trackingHandler,
		WSHandler:       wsHandler,
		TokenVerifier:   authService,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
