package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"lab-loan-backend/config"
	"lab-loan-backend/internal/api"
	"lab-loan-backend/internal/db"
	"lab-loan-backend/internal/loan"
	"lab-loan-backend/internal/notification"
	"lab-loan-backend/internal/session"
	"lab-loan-backend/internal/store"
	"lab-loan-backend/internal/sweep"
)

func main() {
	logger := log.New(os.Stdout, "labloan ", log.LstdFlags)

	// Optional .env for local development; config values come from the yaml file.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys are not configured; push delivery is disabled")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	sessions := session.NewStore(rdb, cfg.Redis.SessionTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions)
	pool.Start(ctx)
	gateway := notification.NewGateway(appStore, pool)

	loc, err := time.LoadLocation(cfg.Sweep.Timezone)
	if err != nil {
		logger.Fatalf("invalid sweep timezone %q: %v", cfg.Sweep.Timezone, err)
	}
	engine := loan.NewEngine(appStore, gateway, loc)

	if cfg.Sweep.Enabled {
		runner := sweep.NewRunner(cfg.Sweep.Interval)
		runner.Register("overdue", engine.CheckOverdueLoans)
		runner.Register("reminders", engine.CheckAndSendReminders)
		go runner.Run(ctx)
	} else {
		logger.Println("sweeps are disabled")
	}

	router := api.NewRouter(&cfg.Server, appStore, engine, sessions, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("server gracefully stopped")
}
