package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "bibliosys-backend/internal/api/http"
	"bibliosys-backend/internal/config"
	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/repository"
	"bibliosys-backend/internal/repository/memory"
	"bibliosys-backend/internal/repository/postgres"
	"bibliosys-backend/internal/security"
	"bibliosys-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Bibliosys lending backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Lending configuration",
		"loan_period_days", cfg.Lending.LoanPeriodDays,
		"daily_fine", cfg.Lending.DailyFine,
		"timezone", cfg.Lending.Timezone,
	)

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", "driver", cfg.Storage.Driver, "error", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.AccessTokenTTL())

	// Initialize Services
	clock := service.Clock(time.Now)
	inventory := service.NewInventoryLedger(store, clock)
	loans := service.NewLoanRegister(store, cfg.LoanPolicy())
	archive := service.NewArchivalStore(store, clock)
	services := httpapi.Services{
		Inventory: inventory,
		Loans:     loans,
		Archive:   archive,
		Workflow:  service.NewRequestWorkflow(store, inventory, loans, archive, clock),
		Readers:   service.NewReaderService(store, clock, cfg.Lending.AllocationAttempts),
		Auth:      service.NewAuthService(store, tokenManager, clock),
	}

	if cfg.Bootstrap.LibrarianUsername != "" {
		if err := services.Auth.EnsureLibrarian(ctx, cfg.Bootstrap.LibrarianUsername, cfg.Bootstrap.LibrarianPassword); err != nil {
			logger.Error("Failed to bootstrap librarian", "error", err)
			log.Fatalf("Failed to bootstrap librarian: %v", err)
		}
	}

	router := httpapi.NewRouter(httpapi.NewHandler(services, time.Now), tokenManager)
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped. Goodbye!")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	// Test database connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Database schema applied")
	}

	return postgres.NewStore(db), func() { db.Close() }, nil
}
