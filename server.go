package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/UkraineNow-Intel/autoSA-backend/common"
	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/messaging"
	"github.com/UkraineNow-Intel/autoSA-backend/common/store"
	"github.com/UkraineNow-Intel/autoSA-backend/common/translator"
	"github.com/UkraineNow-Intel/autoSA-backend/handler"
	"github.com/UkraineNow-Intel/autoSA-backend/refresh"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

type AppHttpServer struct {
	router     *chi.Mux
	cfg        config.Config
	server     *http.Server
	store      store.Store
	natsClient *messaging.NatsBroker
	runner     *refresh.Runner
	translator *translator.Translator
}

func NewAppHttpServer(cfg config.Config) (*AppHttpServer, error) {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// A refresh run is the slowest request this service handles: the sum
	// of all provider latencies.
	r.Use(middleware.Timeout(10 * time.Minute))

	server := &AppHttpServer{
		router: r,
		cfg:    cfg,
	}
	return server, nil
}

// SetStore sets the persistence dependency
func (s *AppHttpServer) SetStore(st store.Store) {
	s.store = st
}

// SetNatsClient sets the NATS client dependency
func (s *AppHttpServer) SetNatsClient(client *messaging.NatsBroker) {
	s.natsClient = client
}

// SetRunner sets the refresh runner dependency
func (s *AppHttpServer) SetRunner(runner *refresh.Runner) {
	s.runner = runner
}

// SetTranslator sets the translation dependency
func (s *AppHttpServer) SetTranslator(t *translator.Translator) {
	s.translator = t
}

func (s *AppHttpServer) setupRoute() {
	r := s.router

	if s.natsClient == nil {
		log.Warn().Msg("NATS client dependency not set")
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"` + common.AppName + `"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		sourceHandler := handler.NewSourceHandler(s.store)
		refreshHandler := handler.NewRefreshHandler(s.runner, s.natsClient)
		translationHandler := handler.NewTranslationHandler(s.translator, s.store)
		healthHandler := handler.NewHealthHandler(s.store)

		r.Mount("/sources", sourceHandler.Router())
		r.Mount("/refresh", refreshHandler.Router())
		r.Mount("/translations", translationHandler.Router())
		r.Mount("/health", healthHandler.Router())
	})
}

func (s *AppHttpServer) start() error {
	r := s.router
	cfg := s.cfg
	log.Info().Msg("Starting up server...")

	s.server = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// stop gracefully shuts down the server
func (s *AppHttpServer) stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
