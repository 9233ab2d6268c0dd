package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	router "github.com/dkeye/Consult/internal/adapters/http"
	sig "github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/credential"
	"github.com/dkeye/Consult/internal/app/rendezvous"
	"github.com/dkeye/Consult/internal/config"
	transport "github.com/dkeye/Consult/internal/transport/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	flags.Int("port", 8080, "listen port")
	flags.String("mode", "release", "gin mode: debug or release")
	flags.Bool("rooms.strict", false, "reject joins to rooms that were never provisioned")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	hub := &rendezvous.Hub{
		Registry: rendezvous.NewRegistry(),
		Rooms:    rendezvous.NewRoomManager(),
		Policy:   rendezvous.SimplePolicy{},
		Strict:   cfg.Rooms.Strict,
	}
	api := &transport.API{
		APIKey:    cfg.APIKey,
		SecretKey: cfg.SecretKey,
		Issuer:    rendezvous.NewIssuer(cfg.Secret, cfg.Credential.MaxTTL),
		Rooms:     hub.Rooms,
		Catalog:   rendezvous.NewCatalog(),
		Tokens: credential.NewProvider(credential.Options{
			Endpoint:  cfg.Credential.Endpoint,
			APIKey:    cfg.APIKey,
			SecretKey: cfg.SecretKey,
			TTL:       cfg.Credential.TTL,
			Timeout:   cfg.Credential.Timeout,
		}),
	}
	limiter := sig.NewRoomRateLimiter(cfg.Signal.JoinLimit, cfg.Signal.JoinWindow)
	ctrl := sig.NewSignalWSController(hub, limiter, cfg.Signal.ReadLimit, cfg.Signal.PingPeriod)

	r := router.SetupRouter(ctx, cfg, api, ctrl)
	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Info().Str("addr", addr).Bool("strict", cfg.Rooms.Strict).Msg("Consult rendezvous server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
