// Package portal talks to xdg-desktop-portal over the session bus. It covers the
// subset of the RemoteDesktop and ScreenCast interfaces needed to obtain a
// combined input + monitor capture session.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	busName    = "org.freedesktop.portal.Desktop"
	objectPath = dbus.ObjectPath("/org/freedesktop/portal/desktop")

	remoteDesktopInterface = "org.freedesktop.portal.RemoteDesktop"
	screenCastInterface    = "org.freedesktop.portal.ScreenCast"
	requestInterface       = "org.freedesktop.portal.Request"
)

var (
	ErrCancelled     = errors.New("request cancelled by user")
	ErrRequestFailed = errors.New("request failed")
)

// Client is a portal proxy bound to one bus connection.
type Client struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
	owned  bool
}

// Connect opens a private connection to the session bus.
func Connect(ctx context.Context, logger *slog.Logger) (*Client, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	c := NewClient(conn, logger)
	c.owned = true
	return c, nil
}

// NewClient wraps an existing bus connection.
func NewClient(conn *dbus.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:   conn,
		obj:    conn.Object(busName, objectPath),
		logger: logger,
	}
}

// Close closes the bus connection if the client opened it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

// newToken returns a handle token valid as an object path element.
func newToken() string {
	return "wlr" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// requestPath predicts the Request object path for a handle token, as
// documented by org.freedesktop.portal.Request.
func requestPath(uniqueName, token string) dbus.ObjectPath {
	sender := strings.TrimPrefix(uniqueName, ":")
	sender = strings.ReplaceAll(sender, ".", "_")
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + sender + "/" + token)
}

// request performs a portal method that answers through a Request object and
// waits for its Response signal. The options map gets a fresh handle_token.
func (c *Client) request(ctx context.Context, method string, options map[string]dbus.Variant, args ...interface{}) (map[string]dbus.Variant, error) {
	token := newToken()
	options["handle_token"] = dbus.MakeVariant(token)

	var expected dbus.ObjectPath
	if names := c.conn.Names(); len(names) > 0 {
		expected = requestPath(names[0], token)
	}

	match := []dbus.MatchOption{
		dbus.WithMatchInterface(requestInterface),
		dbus.WithMatchMember("Response"),
	}
	if err := c.conn.AddMatchSignalContext(ctx, match...); err != nil {
		return nil, fmt.Errorf("subscribing to %s responses: %w", method, err)
	}
	defer c.conn.RemoveMatchSignalContext(context.WithoutCancel(ctx), match...)

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	call := c.obj.CallWithContext(ctx, method, 0, append(args, options)...)
	if call.Err != nil {
		return nil, call.Err
	}
	var handle dbus.ObjectPath
	if err := call.Store(&handle); err != nil {
		return nil, fmt.Errorf("reading request handle: %w", err)
	}
	if expected != "" && handle != expected {
		c.logger.Debug("portal returned unexpected request path", "expected", expected, "got", handle)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil, fmt.Errorf("bus connection closed while waiting for %s", method)
			}
			if sig.Name != requestInterface+".Response" {
				continue
			}
			if sig.Path != handle && sig.Path != expected {
				continue
			}
			return parseResponse(method, sig.Body)
		}
	}
}

func parseResponse(method string, body []interface{}) (map[string]dbus.Variant, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("%s: malformed response with %d values", method, len(body))
	}
	code, ok := body[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("%s: response code has type %T", method, body[0])
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("%s: response results have type %T", method, body[1])
	}
	switch code {
	case 0:
		return results, nil
	case 1:
		return nil, fmt.Errorf("%s: %w", method, ErrCancelled)
	default:
		return nil, fmt.Errorf("%s: %w (code %d)", method, ErrRequestFailed, code)
	}
}

// call performs a portal method that returns directly.
func (c *Client) call(ctx context.Context, method string, args ...interface{}) *dbus.Call {
	return c.obj.CallWithContext(ctx, method, 0, args...)
}

func sessionHandle(results map[string]dbus.Variant) (dbus.ObjectPath, error) {
	v, ok := results["session_handle"]
	if !ok {
		return "", errors.New("response has no session_handle")
	}
	switch h := v.Value().(type) {
	case string:
		return dbus.ObjectPath(h), nil
	case dbus.ObjectPath:
		return h, nil
	default:
		return "", fmt.Errorf("session_handle has type %T", h)
	}
}
