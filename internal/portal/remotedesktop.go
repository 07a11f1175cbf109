package portal

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// CreateSession creates a RemoteDesktop session. The same session object is
// used for ScreenCast source selection.
func (c *Client) CreateSession(ctx context.Context) (Session, error) {
	options := map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(newToken()),
	}
	results, err := c.request(ctx, remoteDesktopInterface+".CreateSession", options)
	if err != nil {
		return Session{}, err
	}
	handle, err := sessionHandle(results)
	if err != nil {
		return Session{}, err
	}
	c.logger.Debug("portal session created", "session", handle)
	return Session{Handle: handle}, nil
}

// SelectDevices chooses the input devices for a session. An empty
// restoreToken requests a fresh grant.
func (c *Client) SelectDevices(ctx context.Context, s Session, devices DeviceType, restoreToken string, persist PersistMode) error {
	options := map[string]dbus.Variant{
		"types":        dbus.MakeVariant(uint32(devices)),
		"persist_mode": dbus.MakeVariant(uint32(persist)),
	}
	if restoreToken != "" {
		options["restore_token"] = dbus.MakeVariant(restoreToken)
	}
	_, err := c.request(ctx, remoteDesktopInterface+".SelectDevices", options, s.Handle)
	return err
}

// Start starts a session, which may prompt the user, and returns the granted
// devices and streams.
func (c *Client) Start(ctx context.Context, s Session, parentWindow string) (*StartResponse, error) {
	results, err := c.request(ctx, remoteDesktopInterface+".Start", map[string]dbus.Variant{}, s.Handle, parentWindow)
	if err != nil {
		return nil, err
	}
	resp, err := decodeStartResults(results)
	if err != nil {
		return nil, fmt.Errorf("decoding start response: %w", err)
	}
	return resp, nil
}

// NotifyKeyboardKeysym presses or releases an X11 keysym.
func (c *Client) NotifyKeyboardKeysym(ctx context.Context, s Session, keysym int32, state KeyState) error {
	return c.call(ctx, remoteDesktopInterface+".NotifyKeyboardKeysym",
		s.Handle, map[string]dbus.Variant{}, keysym, uint32(state)).Err
}

// NotifyPointerMotionAbsolute moves the pointer within the coordinate space
// of the given stream.
func (c *Client) NotifyPointerMotionAbsolute(ctx context.Context, s Session, stream uint32, x, y float64) error {
	return c.call(ctx, remoteDesktopInterface+".NotifyPointerMotionAbsolute",
		s.Handle, map[string]dbus.Variant{}, stream, x, y).Err
}

// NotifyPointerButton presses or releases an evdev button code.
func (c *Client) NotifyPointerButton(ctx context.Context, s Session, button int32, state ButtonState) error {
	return c.call(ctx, remoteDesktopInterface+".NotifyPointerButton",
		s.Handle, map[string]dbus.Variant{}, button, uint32(state)).Err
}

// NotifyPointerAxis sends a smooth scroll event in pixels.
func (c *Client) NotifyPointerAxis(ctx context.Context, s Session, dx, dy float64) error {
	options := map[string]dbus.Variant{"finish": dbus.MakeVariant(true)}
	return c.call(ctx, remoteDesktopInterface+".NotifyPointerAxis",
		s.Handle, options, dx, dy).Err
}
