package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Consult/internal/adapters/devices"
	"github.com/dkeye/Consult/internal/adapters/engine"
	"github.com/dkeye/Consult/internal/adapters/render"
	"github.com/dkeye/Consult/internal/app/appointment"
	"github.com/dkeye/Consult/internal/app/audio"
	"github.com/dkeye/Consult/internal/app/credential"
	"github.com/dkeye/Consult/internal/app/device"
	"github.com/dkeye/Consult/internal/app/room"
	"github.com/dkeye/Consult/internal/app/session"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	flags := pflag.NewFlagSet("videotest", pflag.ExitOnError)
	name := flags.String("name", "", "display name shown to the other participant")
	roleName := flags.String("role", "client", "coach or client")
	roomID := flags.String("room", "", "room to join; empty creates a new one")
	sessionID := flags.String("session-id", "", "appointment id; joins its room in production mode")
	verbose := flags.BoolP("verbose", "v", false, "log at debug level")
	flags.String("signal.url", "ws://localhost:8080/api/ws/signal", "signaling websocket")
	flags.Bool("devices.camera", true, "pretend a camera is present")
	flags.Bool("devices.microphone", true, "pretend a microphone is present")
	flags.Bool("devices.permission", true, "grant capture permission")
	flags.Bool("session.allow_local_fallback", false, "use a local room when room creation is unavailable")
	_ = flags.Parse(os.Args[1:])

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	role, err := domain.ParseRole(*roleName)
	if err != nil {
		log.Fatal().Err(err).Str("role", *roleName).Msg("bad role")
	}
	if *name == "" {
		*name = string(role)
	}

	var req session.Request
	if *sessionID != "" {
		req = session.ProductionRequest(cfg.Rooms.JoinTemplate, *sessionID, *name, role)
	} else {
		req = session.TestRequest(uuid.NewString()[:8], *name, role, domain.RoomID(*roomID))
	}

	devCfg := devices.Config{
		Camera:     cfg.Devices.Camera,
		Microphone: cfg.Devices.Microphone,
		Permission: cfg.Devices.Permission,
		ToneHz:     cfg.Devices.ToneHz,
	}
	surfaces := render.NewFactory()
	ctrl := session.NewController(session.Deps{
		Credentials: credential.NewProvider(credential.Options{
			Endpoint:  cfg.Credential.Endpoint,
			APIKey:    cfg.APIKey,
			SecretKey: cfg.SecretKey,
			TTL:       cfg.Credential.TTL,
			Timeout:   cfg.Credential.Timeout,
		}),
		Rooms:    room.NewResolver(room.Options{Endpoint: cfg.Rooms.Endpoint, Timeout: cfg.Rooms.Timeout}),
		Devices:  device.NewGuard(devices.NewProber(devCfg)),
		Capture:  devices.NewCapture(devCfg),
		Surfaces: surfaces,
		NewTransport: func() core.Transport {
			return engine.New(engine.Options{URL: cfg.Signal.URL, ICEServers: cfg.ICEServers})
		},
		Monitor: audio.NewMonitor(cfg.Session.MeterInterval),
	}, session.Options{
		MaxRetries:         cfg.Session.MaxRetries,
		Backoff:            cfg.Session.Backoff,
		AllowLocalFallback: cfg.Session.AllowLocalFallback,
	})

	term := &terminal{
		out:       os.Stdout,
		ctrl:      ctrl,
		surfaces:  surfaces,
		req:       req,
		shareBase: cfg.ShareBaseURL,
	}

	if req.Mode == session.ModeProduction {
		details, err := appointment.NewClient(cfg.SessionsEndpoint, cfg.Credential.Timeout, nil).Get(ctx, *sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", *sessionID).Msg("session details unavailable")
		} else {
			term.printDetails(details)
		}
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := ctrl.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return term.notices(gctx, stopRun) })
	g.Go(func() error { return term.levels(gctx) })

	keys := make(chan byte)
	go readKeys(gctx.Done(), os.Stdin, keys)

	if err := ctrl.Start(req); err != nil {
		log.Error().Err(err).Msg("start")
		stopRun()
	}

	go func() {
		for {
			select {
			case <-gctx.Done():
				return
			case <-ctx.Done():
				term.println("leaving...")
				if err := ctrl.Leave(); err != nil {
					stopRun()
				}
				return
			case k, ok := <-keys:
				if !ok {
					return
				}
				term.key(k, stopRun)
			}
		}
	}()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("videotest stopped")
		os.Exit(1)
	}
}
