package main

import (
	"context"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/auth"
	"github.com/avbelov/squadduel/internal/catalog"
	"github.com/avbelov/squadduel/internal/engine"
	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/gateway"
	"github.com/avbelov/squadduel/internal/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		log.Fatal().Msg("BOT_TOKEN environment variable is required")
	}
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if len(cfg.Catalog.Leagues) == 0 {
		log.Fatal().Msg("config has no catalog leagues")
	}

	cat, err := catalog.Load(cfg.Catalog.Leagues)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load catalog")
	}
	log.Info().Strs("leagues", cat.Leagues()).Msg("catalog loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	usersApp := users.NewApp(users.NewRepository(pool))

	publisherCfg := events.DefaultJetStreamConfig()
	publisherCfg.URL = natsURL
	publisher, err := events.NewJetStreamPublisher(publisherCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	now := time.Now().UnixNano()
	rng := rand.New(rand.NewPCG(uint64(now), uint64(now>>32)))
	eng := engine.New(ctx, clockwork.NewRealClock(), rng, cfg.engineConfig(), cat, usersApp, manager, publisher)

	validator := auth.NewValidator(botToken, cfg.initDataMaxAge())
	gateway.NewService(ctx, manager, eng, usersApp, validator)

	consumerCfg := gateway.DefaultJetStreamConsumerConfig()
	consumerCfg.URL = natsURL
	consumer, err := gateway.NewEventConsumer(manager, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	defer consumer.Stop()

	server := setupServer(gateway.NewWebSocketHandler(manager))

	go manager.Start(ctx)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	log.Info().Msg("goodbye")
}
