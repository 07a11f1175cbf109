package app

import (
	"context"
	"log/slog"

	"weblinuxremote/internal/capture"
	"weblinuxremote/internal/input"
	"weblinuxremote/internal/session"
)

// Link is an opened desktop: where frames come from and where input goes.
type Link struct {
	Capture capture.Backend
	Device  input.Device
	// Width and Height are the source size known before the capture format
	// is negotiated. Zero if unknown.
	Width, Height int
	// Close, if set, runs when the Remote shuts down.
	Close func()
}

// Backend opens the desktop a Remote serves.
type Backend interface {
	Open(ctx context.Context) (*Link, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context) (*Link, error)

func (f BackendFunc) Open(ctx context.Context) (*Link, error) { return f(ctx) }

// PortalBackend negotiates a RemoteDesktop portal session and captures its
// screencast stream.
type PortalBackend struct {
	// Connect opens the broker the session is negotiated over. The returned
	// func releases it.
	Connect func(ctx context.Context) (session.Broker, func(), error)
	Tokens  *session.TokenStore
	Options session.Options
	// Capture builds the capture backend for the negotiated session.
	Capture func(*session.Session) capture.Backend
	Logger  *slog.Logger
}

func (b *PortalBackend) Open(ctx context.Context) (*Link, error) {
	broker, release, err := b.Connect(ctx)
	if err != nil {
		return nil, err
	}
	n := session.NewNegotiator(broker, b.Tokens, b.Options, b.Logger)
	done := func() {
		n.Wait()
		release()
	}
	s, err := n.Negotiate(ctx)
	if err != nil {
		done()
		return nil, err
	}
	st := s.Stream()
	return &Link{
		Capture: b.Capture(s),
		Device:  s.Device(),
		Width:   int(st.Width),
		Height:  int(st.Height),
		Close:   done,
	}, nil
}

// Static returns a Connect func that always hands out broker.
func Static(broker session.Broker) func(context.Context) (session.Broker, func(), error) {
	return func(context.Context) (session.Broker, func(), error) {
		return broker, func() {}, nil
	}
}
