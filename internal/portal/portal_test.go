package portal

import (
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPath(t *testing.T) {
	got := requestPath(":1.42", "wlrabc")
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/wlrabc"), got)
	assert.True(t, got.IsValid())
}

func TestNewTokenIsPathElement(t *testing.T) {
	a, b := newToken(), newToken()
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
	assert.True(t, strings.HasPrefix(a, "wlr"))
	assert.True(t, dbus.ObjectPath("/x/"+a).IsValid())
}

func TestParseResponse(t *testing.T) {
	results := map[string]dbus.Variant{"session_handle": dbus.MakeVariant("/org/freedesktop/portal/desktop/session/1_42/s")}

	got, err := parseResponse("Start", []interface{}{uint32(0), results})
	require.NoError(t, err)
	h, err := sessionHandle(got)
	require.NoError(t, err)
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/portal/desktop/session/1_42/s"), h)

	_, err = parseResponse("Start", []interface{}{uint32(1), results})
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = parseResponse("Start", []interface{}{uint32(2), results})
	assert.ErrorIs(t, err, ErrRequestFailed)

	_, err = parseResponse("Start", []interface{}{uint32(0)})
	assert.Error(t, err)
}

func TestSessionHandleAcceptsObjectPath(t *testing.T) {
	h, err := sessionHandle(map[string]dbus.Variant{
		"session_handle": dbus.MakeVariant(dbus.ObjectPath("/a/b")),
	})
	require.NoError(t, err)
	assert.Equal(t, dbus.ObjectPath("/a/b"), h)

	_, err = sessionHandle(map[string]dbus.Variant{})
	assert.Error(t, err)
}

func TestDecodeStartResults(t *testing.T) {
	streams := [][]interface{}{
		{
			uint32(57),
			map[string]dbus.Variant{
				"id":          dbus.MakeVariant("0"),
				"source_type": dbus.MakeVariant(uint32(SourceMonitor)),
				"position":    dbus.MakeVariant([]interface{}{int32(0), int32(0)}),
				"size":        dbus.MakeVariant([]interface{}{int32(1920), int32(1080)}),
			},
		},
	}
	resp, err := decodeStartResults(map[string]dbus.Variant{
		"devices":       dbus.MakeVariant(uint32(DeviceKeyboard | DevicePointer)),
		"restore_token": dbus.MakeVariant("tok-1"),
		"streams":       dbus.MakeVariant(streams),
	})
	require.NoError(t, err)

	assert.Equal(t, DeviceKeyboard|DevicePointer, resp.Devices)
	assert.Equal(t, "tok-1", resp.RestoreToken)
	require.Len(t, resp.Streams, 1)
	assert.Equal(t, Stream{NodeID: 57, ID: "0", Width: 1920, Height: 1080, SourceType: SourceMonitor}, resp.Streams[0])
}

func TestDecodeStartResultsWithoutStreams(t *testing.T) {
	resp, err := decodeStartResults(map[string]dbus.Variant{})
	require.NoError(t, err)
	assert.Empty(t, resp.Streams)
	assert.Empty(t, resp.RestoreToken)
}

func TestDecodeStreamsRejectsGarbage(t *testing.T) {
	_, err := decodeStreams("nope")
	assert.Error(t, err)

	_, err = decodeStreams([]interface{}{[]interface{}{"x", map[string]dbus.Variant{}}})
	assert.Error(t, err)
}
