package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"weblinuxremote/internal/input"
	"weblinuxremote/internal/portal"
)

// ErrMissingStream is returned when the started session carries no stream.
var ErrMissingStream = errors.New("missing stream")

const inputDevices = portal.DeviceKeyboard | portal.DevicePointer

// Options tunes negotiation timing.
type Options struct {
	// KeyHold is how long each bootstrap key stays down.
	KeyHold time.Duration
	// StepDelay separates bootstrap key presses so the share dialog can move
	// focus.
	StepDelay time.Duration
	// Bootstrap enables the key sequence that confirms the share dialog.
	Bootstrap bool
}

// DefaultOptions returns the timings the share dialog is known to accept.
func DefaultOptions() Options {
	return Options{
		KeyHold:   input.DefaultHold,
		StepDelay: 50 * time.Millisecond,
		Bootstrap: true,
	}
}

type chord struct {
	key       input.Key
	modifiers []input.Key
}

func (c chord) String() string {
	parts := make([]string, 0, len(c.modifiers)+1)
	for _, m := range c.modifiers {
		parts = append(parts, m.Name())
	}
	return strings.Join(append(parts, c.key.Name()), "+")
}

// bootstrapSequence drives the portal share dialog: activate it, select the
// first monitor, move focus back to the share button and press it.
var bootstrapSequence = []chord{
	{key: input.Space},
	{key: input.Tab},
	{key: input.Space},
	{key: input.Tab, modifiers: []input.Key{input.LeftShift}},
	{key: input.Tab, modifiers: []input.Key{input.LeftShift}},
	{key: input.Space},
}

// Negotiator opens portal sessions.
type Negotiator struct {
	broker Broker
	tokens *TokenStore
	opts   Options
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewNegotiator creates a negotiator. The restore token is kept in tokens.
func NewNegotiator(broker Broker, tokens *TokenStore, opts Options, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		broker: broker,
		tokens: tokens,
		opts:   opts,
		logger: logger.With("component", "negotiator"),
	}
}

// Negotiate opens a bootstrap session carrying the persisted input grant,
// then the primary session with keyboard, pointer and one monitor. While
// the primary session starts, a detached task types into the bootstrap
// session to confirm the share dialog; its failures are only logged.
func (n *Negotiator) Negotiate(ctx context.Context) (*Session, error) {
	token, err := n.tokens.Load()
	if err != nil {
		return nil, err
	}

	boot, err := n.startBootstrapSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("bootstrap session: %w", err)
	}

	primary, err := n.broker.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := n.broker.SelectDevices(ctx, primary, inputDevices, "", portal.PersistNone); err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	err = n.broker.SelectSources(ctx, primary, portal.SourceOptions{
		Types:   portal.SourceMonitor,
		Cursor:  portal.CursorEmbedded,
		Persist: portal.PersistNone,
	})
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}

	if n.opts.Bootstrap {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.bootstrap(context.WithoutCancel(ctx), boot)
		}()
	}

	resp, err := n.broker.Start(ctx, primary, "")
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if len(resp.Streams) == 0 {
		return nil, fmt.Errorf("read response: %w", ErrMissingStream)
	}
	if len(resp.Streams) > 1 {
		n.logger.Warn("portal returned several streams, using the first", "streams", len(resp.Streams))
	}
	stream := resp.Streams[0]

	n.logger.Info("session negotiated",
		"session", primary.String(),
		"node_id", stream.NodeID,
		"width", stream.Width,
		"height", stream.Height)

	return &Session{broker: n.broker, handle: primary, stream: stream}, nil
}

func (n *Negotiator) startBootstrapSession(ctx context.Context, token string) (portal.Session, error) {
	s, err := n.broker.CreateSession(ctx)
	if err != nil {
		return portal.Session{}, fmt.Errorf("create session: %w", err)
	}
	if err := n.broker.SelectDevices(ctx, s, inputDevices, token, portal.PersistExplicitlyRevoked); err != nil {
		return portal.Session{}, fmt.Errorf("select devices: %w", err)
	}
	resp, err := n.broker.Start(ctx, s, "")
	if err != nil {
		return portal.Session{}, fmt.Errorf("start: %w", err)
	}
	if resp.RestoreToken != "" && resp.RestoreToken != token {
		if err := n.tokens.Save(resp.RestoreToken); err != nil {
			return portal.Session{}, err
		}
		n.logger.Info("restore token updated", "path", n.tokens.Path())
	}
	return s, nil
}

func (n *Negotiator) bootstrap(ctx context.Context, s portal.Session) {
	in := input.NewInjector(&device{broker: n.broker, session: s},
		input.WithHold(n.opts.KeyHold),
		input.WithLogger(n.logger))

	for _, c := range bootstrapSequence {
		n.logger.Debug("bootstrap press", "key", c.String())
		if err := in.PressWithModifiers(ctx, c.key, c.modifiers...); err != nil {
			n.logger.Warn("bootstrap sequence aborted", "key", c.String(), "error", err)
			return
		}
		if err := pause(ctx, n.opts.StepDelay); err != nil {
			return
		}
	}
	n.logger.Debug("bootstrap sequence finished")
}

// Wait blocks until the detached bootstrap tasks have finished.
func (n *Negotiator) Wait() {
	n.wg.Wait()
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
