package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"weblinuxremote/internal/app"
	"weblinuxremote/internal/capture"
	"weblinuxremote/internal/capture/pipewire"
	"weblinuxremote/internal/config"
	"weblinuxremote/internal/logging"
	"weblinuxremote/internal/portal"
	"weblinuxremote/internal/server"
	"weblinuxremote/internal/session"
	"weblinuxremote/internal/x11"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "weblinuxremote:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args, os.Getenv)
	if err != nil {
		return err
	}
	logger, cleanup, err := logging.Setup(cfg.Log.Logging())
	if err != nil {
		return err
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote := app.New(cfg, newBackend(cfg, logger), logger)
	defer remote.Close()
	if err := remote.Start(ctx); err != nil {
		// The server still comes up; its endpoints answer 503.
		logger.Error("remote session unavailable", "error", err)
	}
	if ctx.Err() != nil {
		return nil
	}

	srv := server.New(remote, server.Options{ICEServers: iceServers(cfg), Logger: logger})
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(cfg.Listen) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Screencast responses only end once the hub is closed.
	remote.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}
	return nil
}

func newBackend(cfg *config.Config, logger *slog.Logger) app.Backend {
	if cfg.Backend == config.BackendX11 {
		if os.Getenv("DISPLAY") == "" {
			os.Setenv("DISPLAY", ":0")
		}
		return app.BackendFunc(func(context.Context) (*app.Link, error) {
			bounds, err := x11.DisplayBounds(cfg.Display)
			if err != nil {
				return nil, err
			}
			dev, err := x11.NewDevice(cfg.Display)
			if err != nil {
				return nil, err
			}
			return &app.Link{
				Capture: x11.NewSource(cfg.Display, logger),
				Device:  dev,
				Width:   bounds.Dx(),
				Height:  bounds.Dy(),
			}, nil
		})
	}

	return &app.PortalBackend{
		Connect: func(ctx context.Context) (session.Broker, func(), error) {
			client, err := portal.Connect(ctx, logger)
			if err != nil {
				return nil, nil, err
			}
			return client, func() { _ = client.Close() }, nil
		},
		Tokens: session.NewTokenStore(cfg.StateDir),
		Options: session.Options{
			KeyHold:   cfg.KeyHold,
			StepDelay: cfg.BootstrapStepDelay,
			Bootstrap: cfg.Bootstrap,
		},
		Capture: func(s *session.Session) capture.Backend {
			return pipewire.New(s.OpenPipeWireRemote, s.Stream().NodeID, logger)
		},
		Logger: logger,
	}
}

func iceServers(cfg *config.Config) []server.ICEServer {
	out := make([]server.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		out = append(out, server.ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}
	return out
}
