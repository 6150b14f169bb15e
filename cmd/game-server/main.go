package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"gobang-server/internal/config"
	"gobang-server/internal/logging"
	"gobang-server/internal/player"
	"gobang-server/internal/server"
	"gobang-server/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	registry := player.NewRegistry()
	recs, err := st.LoadPlayers(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("load players failed")
	}
	registry.ReplaceAll(recs)
	log.Info().Int("players", registry.Len()).Msg("player registry loaded")

	srv := server.New(cfg.Server, registry, st)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           newRouter(st, srv),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		srv.Shutdown()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("tcp server stopped")
		}
		srv.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	st.Close()
}
