// Package session negotiates a combined remote-control and screencast grant
// with the desktop portal.
package session

import (
	"context"
	"os"

	"weblinuxremote/internal/input"
	"weblinuxremote/internal/portal"
)

// Broker is the subset of the portal client used by the negotiator and by
// sessions. *portal.Client implements it.
type Broker interface {
	CreateSession(ctx context.Context) (portal.Session, error)
	SelectDevices(ctx context.Context, s portal.Session, devices portal.DeviceType, restoreToken string, persist portal.PersistMode) error
	SelectSources(ctx context.Context, s portal.Session, opts portal.SourceOptions) error
	Start(ctx context.Context, s portal.Session, parentWindow string) (*portal.StartResponse, error)
	NotifyKeyboardKeysym(ctx context.Context, s portal.Session, keysym int32, state portal.KeyState) error
	NotifyPointerMotionAbsolute(ctx context.Context, s portal.Session, stream uint32, x, y float64) error
	NotifyPointerButton(ctx context.Context, s portal.Session, button int32, state portal.ButtonState) error
	NotifyPointerAxis(ctx context.Context, s portal.Session, dx, dy float64) error
	OpenPipeWireRemote(ctx context.Context, s portal.Session) (*os.File, error)
}

// Session is a started portal session with its single monitor stream.
// Nothing in it changes after negotiation.
type Session struct {
	broker Broker
	handle portal.Session
	stream portal.Stream
}

// Handle returns the portal session object.
func (s *Session) Handle() portal.Session { return s.handle }

// Stream returns the negotiated monitor stream.
func (s *Session) Stream() portal.Stream { return s.stream }

// OpenPipeWireRemote opens a PipeWire connection limited to this session's
// stream.
func (s *Session) OpenPipeWireRemote(ctx context.Context) (*os.File, error) {
	return s.broker.OpenPipeWireRemote(ctx, s.handle)
}

// Device returns an input device that injects into this session. Absolute
// pointer motion is relative to the session's stream.
func (s *Session) Device() input.Device {
	return &device{broker: s.broker, session: s.handle, node: s.stream.NodeID}
}

type device struct {
	broker  Broker
	session portal.Session
	node    uint32
}

func (d *device) NotifyKeysym(ctx context.Context, sym int32, pressed bool) error {
	state := portal.KeyReleased
	if pressed {
		state = portal.KeyPressed
	}
	return d.broker.NotifyKeyboardKeysym(ctx, d.session, sym, state)
}

func (d *device) NotifyPointerAbsolute(ctx context.Context, x, y float64) error {
	return d.broker.NotifyPointerMotionAbsolute(ctx, d.session, d.node, x, y)
}

func (d *device) NotifyButton(ctx context.Context, code int32, pressed bool) error {
	state := portal.ButtonReleased
	if pressed {
		state = portal.ButtonPressed
	}
	return d.broker.NotifyPointerButton(ctx, d.session, code, state)
}

func (d *device) NotifyScroll(ctx context.Context, dx, dy float64) error {
	return d.broker.NotifyPointerAxis(ctx, d.session, dx, dy)
}
