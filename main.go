package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/logger"
	"github.com/UkraineNow-Intel/autoSA-backend/common/messaging"
	"github.com/UkraineNow-Intel/autoSA-backend/common/redis"
	"github.com/UkraineNow-Intel/autoSA-backend/common/storage"
	"github.com/UkraineNow-Intel/autoSA-backend/common/store"
	"github.com/UkraineNow-Intel/autoSA-backend/common/translator"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
	"github.com/UkraineNow-Intel/autoSA-backend/providers/telegram"
	"github.com/UkraineNow-Intel/autoSA-backend/providers/twitter"
	"github.com/UkraineNow-Intel/autoSA-backend/providers/webscraper"
	"github.com/UkraineNow-Intel/autoSA-backend/refresh"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

func main() {
	// INITIATE CONFIGURATION
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}

	logger.Setup()

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// INITIATE STORE
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	// INITIATE NATS CLIENT
	var natsClient *messaging.NatsBroker
	if cfg.NatsEnabled() {
		natsClient, err = messaging.NewNatsBroker(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup NATS client")
		}
		defer natsClient.Close()
	}

	// INITIATE REDIS
	var cache *redis.RedisClient
	if cfg.RedisEnabled() {
		cache, err = redis.NewClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup Redis client")
		}
		defer cache.Close()
	}

	// INITIATE MEDIA STORAGE
	media, err := storage.New(ctx, cfg.Media)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup media storage")
	}

	// INITIATE PROVIDERS
	provs, err := buildProviders(cfg, media)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build providers")
	}
	runner := refresh.NewRunner(st, provs, cfg.Refresh)

	if natsClient != nil {
		if err := subscribeRefreshRequests(natsClient, runner); err != nil {
			log.Fatal().Err(err).Msg("Failed to subscribe to refresh requests")
		}
	}

	// INITIATE SERVER
	server, err := NewAppHttpServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the server")
	}

	server.SetStore(st)
	server.SetNatsClient(natsClient)
	server.SetRunner(runner)
	server.SetTranslator(translator.New(cfg.Translate, cache))

	server.setupRoute()

	go func() {
		if err := server.start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			cancel()
		}
	}()

	log.Info().Str("address", cfg.ListenAddr()).Msg("Server started successfully")

	select {
	case <-shutdown:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server gracefully stopped")
}

// buildProviders assembles the provider set from sources.yaml. Providers
// whose credentials are absent are skipped with a warning rather than
// failing startup; the remaining ones still refresh.
func buildProviders(cfg config.Config, media storage.MediaStorage) ([]providers.Provider, error) {
	sources, err := providers.LoadSourcesConfig(cfg.Refresh.SourcesFile)
	if err != nil {
		return nil, err
	}

	var provs []providers.Provider

	siteKeys := make([]string, 0, len(sources.Sites))
	for key := range sources.Sites {
		siteKeys = append(siteKeys, key)
	}
	sort.Strings(siteKeys)
	for _, key := range siteKeys {
		provs = append(provs, webscraper.New(key, sources.Sites[key], cfg.Refresh.RequestTimeout))
	}

	if len(sources.TwitterAccounts) > 0 {
		tw, err := twitter.New(cfg.Twitter, sources.TwitterAccounts, cfg.Refresh.RequestTimeout)
		if err != nil {
			log.Warn().Err(err).Msg("Twitter provider disabled")
		} else {
			provs = append(provs, tw)
		}
	}

	if len(sources.TelegramAccounts) > 0 || len(sources.TelegramKeywords) > 0 {
		client, err := telegram.NewMTProtoClient(cfg.Telegram)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram provider disabled")
		} else {
			provs = append(provs, telegram.New(client, sources.TelegramAccounts, sources.TelegramKeywords, media))
		}
	}

	log.Info().Int("providers", len(provs)).Msg("Providers configured")
	return provs, nil
}

// subscribeRefreshRequests lets other services trigger a run over the
// broker. The report goes out on the completed subject either way.
func subscribeRefreshRequests(broker *messaging.NatsBroker, runner *refresh.Runner) error {
	_, err := broker.Subscribe(messaging.SubjectRefreshRequest, func(msg *nats.Msg) {
		var req messaging.RefreshRequestMessage
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Error().Err(err).Msg("Invalid refresh request message")
			return
		}

		opts := refresh.Options{Overwrite: req.Overwrite}
		if req.StartTime != "" {
			if ts, err := time.Parse(time.RFC3339, req.StartTime); err == nil {
				ts = ts.UTC()
				opts.StartTime = &ts
			}
		}
		if req.EndTime != "" {
			if ts, err := time.Parse(time.RFC3339, req.EndTime); err == nil {
				ts = ts.UTC()
				opts.EndTime = &ts
			}
		}

		report := runner.Run(context.Background(), opts)
		if err := broker.PublishJSON(messaging.SubjectRefreshCompleted, report); err != nil {
			log.Warn().Err(err).Msg("Failed to publish refresh report")
		}
	})
	return err
}
