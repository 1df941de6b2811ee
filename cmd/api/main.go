package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bigdataia/gaia-etl/internal/config"
	"github.com/bigdataia/gaia-etl/internal/dbstore"
	"github.com/bigdataia/gaia-etl/internal/evalsvc"
	"github.com/bigdataia/gaia-etl/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.AppEnv, cfg.Logging.EvalLogFile)

	if err := cfg.ValidateEval(); err != nil {
		log.Fatal().Err(err).Msg("Configuration incomplete")
	}

	ctx := context.Background()

	store := dbstore.New(cfg.Database, log)

	llm, err := evalsvc.NewGenAIClient(ctx, cfg.Eval.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model client")
	}

	srv := evalsvc.NewServer(store, llm, cfg.Eval.JWTSecret, log)

	server := &http.Server{
		Addr:         cfg.Eval.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Eval.Addr).Msg("Starting evaluation server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
