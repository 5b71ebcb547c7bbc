package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ainoa/noc-console/internal/broker"
	"github.com/ainoa/noc-console/internal/config"
	"github.com/ainoa/noc-console/internal/logger"
)

const feedInterval = time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	port := flag.Int("port", 0, "Override broker port")
	mockMode := flag.Bool("mock", false, "Generate demo telemetry and incidents")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Broker.Port = *port
	}
	if *mockMode {
		cfg.Broker.Mock = true
	}

	closer, err := logger.Init(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	seed, err := broker.LoadSeed(cfg.Broker.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.Broker.SeedFile).Msg("load seed")
	}

	store := broker.NewStore(seed, cfg.Broker.EMAAlpha)
	bc := broker.NewBroadcaster(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go bc.Run(ctx, cfg.Broker.PushInterval)

	if cfg.Broker.Mock {
		log.Info().Dur("interval", feedInterval).Msg("starting demo feed")
		broker.NewFeed(store, bc, feedInterval).Start(ctx)
	}

	mux := http.NewServeMux()
	broker.NewServer(store, bc).SetupRoutes(mux)
	srv := &http.Server{Addr: cfg.Broker.ListenAddr(), Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", srv.Addr).
		Int("regions", len(seed.Regions)).
		Int("incidents", len(seed.Incidents)).
		Dur("push_interval", cfg.Broker.PushInterval).
		Msg("ui broker listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
