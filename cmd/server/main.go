// Package main is the entry point for the idgen API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thenano/openmrs-module-idgen/internal/config"
	"github.com/thenano/openmrs-module-idgen/internal/domain/auth"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	v1 "github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/scheduler"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/storage/postgres"
	"github.com/thenano/openmrs-module-idgen/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting idgen server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Auth ---
	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.Auth.AccessTokenTTL
	jwtService := auth.NewJWTService(jwtConfig)
	authService := auth.NewService(postgres.NewUserRepo(txManager), jwtService)

	// --- Generation service ---
	idgenService := idgen.NewService(idgen.ServiceConfig{
		Sources:   postgres.NewSourceRepo(txManager),
		Sequences: postgres.NewSequenceRepo(txManager),
		Pools:     postgres.NewPoolRepo(txManager),
		Logs:      postgres.NewLogRepo(txManager),
		Options:   postgres.NewAutoGenerationRepo(txManager),
		TxManager: txManager,
	})

	// --- Scheduled pool refill ---
	if cfg.Refill.Enabled {
		refiller := scheduler.NewRefiller(idgenService, cfg.Refill.Schedule)
		if err := refiller.Start(); err != nil {
			log.Fatalw("failed to start refill scheduler", "error", err)
		}
		defer refiller.Stop()
		log.Infow("refill scheduler started", "schedule", cfg.Refill.Schedule)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		AuthService:  authService,
		IdgenService: idgenService,
	})

	// --- HTTP server ---
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
