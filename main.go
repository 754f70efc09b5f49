package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-events/internal/auth"
	"ms-events/internal/clock"
	"ms-events/internal/config"
	"ms-events/internal/database"
	"ms-events/internal/database/migrations"
	"ms-events/internal/events"
	event_db "ms-events/internal/events/db"
	"ms-events/internal/events/event_api"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/profiles"
	profile_db "ms-events/internal/profiles/db"
	"ms-events/internal/profiles/profile_api"
)

func setupPublisher(cfg *config.Config, log *logger.Logger) (events.Publisher, func()) {
	if !cfg.Kafka.Enabled {
		log.Warn("KAFKA", "Kafka disabled, change feed messages are only logged")
		return kafka.LogPublisher{Logger: log}, func() {}
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), cfg.Kafka.Partitions, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func setupVerifier(ctx context.Context, cfg *config.Config, issuer *auth.Issuer, log *logger.Logger) auth.TokenVerifier {
	if cfg.Auth.OIDCIssuer == "" {
		return issuer
	}
	oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	log.Info("AUTH", fmt.Sprintf("Accepting tokens from OIDC issuer %s", cfg.Auth.OIDCIssuer))
	return auth.Chain{issuer, oidcVerifier}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger("ms-events", cfg.Log.Dir)
	defer log.Close()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	log.Info("APP", "Starting Event Service initialization")
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	var redisClient *redis.Client
	redisClient, err = auth.InitializeRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	publisher, closePublisher := setupPublisher(cfg, log)
	defer closePublisher()

	clk := clock.System{}
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	verifier := setupVerifier(ctx, cfg, issuer, log)

	eventService := events.NewService(&event_db.DB{Bun: bunDB}, publisher, clk, log, events.Options{
		Topics: events.Topics{
			Created: cfg.Kafka.Topics.EventCreated,
			Updated: cfg.Kafka.Topics.EventUpdated,
			Joined:  cfg.Kafka.Topics.AttendanceJoined,
			Left:    cfg.Kafka.Topics.AttendanceLeft,
		},
		UpdateRetries: cfg.Events.UpdateRetries,
		DefaultLimit:  cfg.Events.DefaultPageLimit,
		MaxLimit:      cfg.Events.MaxPageLimit,
	})
	profileService := profiles.NewService(&profile_db.DB{Bun: bunDB}, issuer, auth.NewRefreshStore(redisClient), clk, log, cfg.Auth.PasswordCost)

	eventHandler := &event_api.Handler{Service: eventService, Logger: log, PublicURL: cfg.Server.PublicURL}
	profileHandler := &profile_api.Handler{Service: profileService, Logger: log}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.RequestLogger)

	r.Route("/v1", func(r chi.Router) {
		// --- Public Routes ---
		profileHandler.RegisterRoutes(r)
		log.Info("ROUTER", "Profile routes registered under /v1/profile")

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, log))
			eventHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Event routes registered under /v1/events")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Event Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Event Service shutdown complete")
	}
}
