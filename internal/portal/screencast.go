package portal

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
)

// SelectSources configures what a session captures.
func (c *Client) SelectSources(ctx context.Context, s Session, opts SourceOptions) error {
	options := map[string]dbus.Variant{
		"types":        dbus.MakeVariant(uint32(opts.Types)),
		"multiple":     dbus.MakeVariant(opts.Multiple),
		"cursor_mode":  dbus.MakeVariant(uint32(opts.Cursor)),
		"persist_mode": dbus.MakeVariant(uint32(opts.Persist)),
	}
	if opts.RestoreToken != "" {
		options["restore_token"] = dbus.MakeVariant(opts.RestoreToken)
	}
	_, err := c.request(ctx, screenCastInterface+".SelectSources", options, s.Handle)
	return err
}

// OpenPipeWireRemote returns a PipeWire socket restricted to the session's
// streams. The caller owns the returned file.
func (c *Client) OpenPipeWireRemote(ctx context.Context, s Session) (*os.File, error) {
	call := c.call(ctx, screenCastInterface+".OpenPipeWireRemote", s.Handle, map[string]dbus.Variant{})
	if call.Err != nil {
		return nil, call.Err
	}
	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("reading pipewire fd: %w", err)
	}
	return os.NewFile(uintptr(fd), "pipewire-remote"), nil
}
