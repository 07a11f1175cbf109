package portal

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// DeviceType is the bitmask of input devices a remote desktop session may drive.
type DeviceType uint32

const (
	DeviceKeyboard    DeviceType = 1
	DevicePointer     DeviceType = 2
	DeviceTouchscreen DeviceType = 4
)

// PersistMode controls whether the portal hands back a restore token.
type PersistMode uint32

const (
	PersistNone              PersistMode = 0
	PersistApplication       PersistMode = 1
	PersistExplicitlyRevoked PersistMode = 2
)

// CursorMode selects how the cursor appears in a screen cast.
type CursorMode uint32

const (
	CursorHidden   CursorMode = 1
	CursorEmbedded CursorMode = 2
	CursorMetadata CursorMode = 4
)

// SourceType is the bitmask of capturable sources.
type SourceType uint32

const (
	SourceMonitor SourceType = 1
	SourceWindow  SourceType = 2
	SourceVirtual SourceType = 4
)

// KeyState is the state argument of NotifyKeyboardKeysym.
type KeyState uint32

const (
	KeyReleased KeyState = 0
	KeyPressed  KeyState = 1
)

func (s KeyState) String() string {
	if s == KeyPressed {
		return "pressed"
	}
	return "released"
}

// ButtonState is the state argument of NotifyPointerButton.
type ButtonState uint32

const (
	ButtonReleased ButtonState = 0
	ButtonPressed  ButtonState = 1
)

// Session is a portal session object path.
type Session struct {
	Handle dbus.ObjectPath
}

func (s Session) String() string { return string(s.Handle) }

// SourceOptions are the ScreenCast.SelectSources options.
type SourceOptions struct {
	Types        SourceType
	Multiple     bool
	Cursor       CursorMode
	Persist      PersistMode
	RestoreToken string
}

// Stream is one negotiated PipeWire video source.
type Stream struct {
	NodeID     uint32
	ID         string
	X, Y       int32
	Width      int32
	Height     int32
	SourceType SourceType
}

// StartResponse carries the results of RemoteDesktop.Start.
type StartResponse struct {
	Devices      DeviceType
	Streams      []Stream
	RestoreToken string
}

func decodeStartResults(results map[string]dbus.Variant) (*StartResponse, error) {
	resp := &StartResponse{}
	if v, ok := results["devices"]; ok {
		devices, ok := v.Value().(uint32)
		if !ok {
			return nil, fmt.Errorf("devices: unexpected type %s", v.Signature())
		}
		resp.Devices = DeviceType(devices)
	}
	if v, ok := results["restore_token"]; ok {
		token, ok := v.Value().(string)
		if !ok {
			return nil, fmt.Errorf("restore_token: unexpected type %s", v.Signature())
		}
		resp.RestoreToken = token
	}
	if v, ok := results["streams"]; ok {
		streams, err := decodeStreams(v.Value())
		if err != nil {
			return nil, fmt.Errorf("streams: %w", err)
		}
		resp.Streams = streams
	}
	return resp, nil
}

// decodeStreams decodes an a(ua{sv}) value as delivered by godbus.
func decodeStreams(value interface{}) ([]Stream, error) {
	var entries []interface{}
	switch v := value.(type) {
	case [][]interface{}:
		for _, e := range v {
			entries = append(entries, e)
		}
	case []interface{}:
		entries = v
	default:
		return nil, fmt.Errorf("unexpected type %T", value)
	}

	streams := make([]Stream, 0, len(entries))
	for i, e := range entries {
		fields, ok := e.([]interface{})
		if !ok || len(fields) != 2 {
			return nil, fmt.Errorf("entry %d: expected (ua{sv}), got %T", i, e)
		}
		node, ok := fields[0].(uint32)
		if !ok {
			return nil, fmt.Errorf("entry %d: node id has type %T", i, fields[0])
		}
		props, ok := fields[1].(map[string]dbus.Variant)
		if !ok {
			return nil, fmt.Errorf("entry %d: properties have type %T", i, fields[1])
		}

		s := Stream{NodeID: node}
		if v, ok := props["id"]; ok {
			s.ID, _ = v.Value().(string)
		}
		if v, ok := props["source_type"]; ok {
			if t, ok := v.Value().(uint32); ok {
				s.SourceType = SourceType(t)
			}
		}
		if v, ok := props["position"]; ok {
			s.X, s.Y = decodePair(v.Value())
		}
		if v, ok := props["size"]; ok {
			s.Width, s.Height = decodePair(v.Value())
		}
		streams = append(streams, s)
	}
	return streams, nil
}

func decodePair(value interface{}) (int32, int32) {
	pair, ok := value.([]interface{})
	if !ok || len(pair) != 2 {
		return 0, 0
	}
	a, _ := pair[0].(int32)
	b, _ := pair[1].(int32)
	return a, b
}
