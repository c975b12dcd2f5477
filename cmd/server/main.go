package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slotable/service-booking/internal/application"
	"github.com/slotable/service-booking/internal/config"
	bookingEvents "github.com/slotable/service-booking/internal/events"
	"github.com/slotable/service-booking/internal/handler"
	"github.com/slotable/service-booking/internal/notification"
	"github.com/slotable/service-booking/internal/platform/auth"
	"github.com/slotable/service-booking/internal/platform/database"
	"github.com/slotable/service-booking/internal/platform/health"
	"github.com/slotable/service-booking/internal/platform/kafka"
	"github.com/slotable/service-booking/internal/platform/logger"
	"github.com/slotable/service-booking/internal/platform/middleware"
	"github.com/slotable/service-booking/internal/repository"
	"github.com/slotable/service-booking/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.AuditRecordModel{},
			&repository.ServiceModel{},
			&repository.ContactModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		dbURL := dbConfig.DatabaseURL()
		if err := database.RunMigrations(dbURL, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	auditRepo := repository.NewGormAuditRepository(db)
	catalogRepo := repository.NewGormCatalogRepository(db)
	contactRepo := repository.NewGormContactRepository(db)

	// Initialize audit recorder and notification dispatcher
	auditService := application.NewAuditService(auditRepo, log)
	mailer := notification.NewSMTPMailer(cfg.SMTPConfig)
	dispatcher := notification.NewDispatcher(mailer, contactRepo, bookingRepo, log)

	// Initialize the side-effect worker and start it
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sideEffects := worker.New(dispatcher, auditService, kafkaProducer, log)
	sideEffects.Start(ctx)

	// Initialize the booking lifecycle service
	bookingService := application.NewBookingService(
		bookingRepo,
		catalogRepo,
		sideEffects,
		log,
	)

	// Start replica consumers for catalog and identity events
	groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
	catalogConsumer := bookingEvents.NewCatalogEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		catalogRepo,
		log,
	)
	defer func() { _ = catalogConsumer.Close() }()

	go func() {
		log.Info("starting catalog event consumer")
		if err := catalogConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("catalog event consumer error", zap.Error(err))
		}
	}()

	identityConsumer := bookingEvents.NewIdentityEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		contactRepo,
		log,
	)
	defer func() { _ = identityConsumer.Close() }()

	go func() {
		log.Info("starting identity event consumer")
		if err := identityConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("identity event consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminHandler := handler.NewAdminHandler(bookingService, auditService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Stop consumers and the side-effect worker, draining queued tasks
	cancel()
	sideEffects.Wait()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
