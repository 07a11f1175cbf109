package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weblinuxremote/internal/input"
)

func TestDecodeInteractions(t *testing.T) {
	tests := []struct {
		in   string
		want Interaction
	}{
		{`{"type":"position","x":0.5,"y":0.25}`, Interaction{Type: InteractionPosition, X: 0.5, Y: 0.25}},
		{`{"type":"mouse_down","button":"right"}`, Interaction{Type: InteractionMouseDown, Button: input.ButtonRight}},
		{`{"type":"scroll","delta":-33.3}`, Interaction{Type: InteractionScroll, Delta: -33.3}},
		{`{"type":"text","text":"hello"}`, Interaction{Type: InteractionText, Text: "hello"}},
		{`{"type":"key","key":"Space"}`, Interaction{Type: InteractionKey, Key: input.Space}},
		{`{"type":"key","key":"t","modifiers":["Left control"]}`, Interaction{Type: InteractionKey, Key: input.T, Modifiers: []input.Key{input.LeftControl}}},
	}
	for _, tt := range tests {
		var got Interaction
		require.NoError(t, json.Unmarshal([]byte(tt.in), &got), tt.in)
		assert.Equal(t, tt.want, got)
		assert.NoError(t, got.Validate())
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, Interaction{Type: "teleport"}.Validate())
	assert.Error(t, Interaction{Type: InteractionKey}.Validate())
	assert.Error(t, Interaction{Type: InteractionMouseUp, Button: "thumb"}.Validate())
	assert.NoError(t, Interaction{Type: InteractionMouseUp}.Validate())
	assert.Error(t, Interaction{Type: InteractionPosition, Width: -1, Height: 4}.Validate())
}

func TestPositionOf(t *testing.T) {
	assert.Equal(t, RelativePosition{X: 0.25, Y: 0.5},
		PositionOf(Interaction{Type: InteractionPosition, X: 160, Y: 180, Width: 640, Height: 360}))
	assert.Equal(t, RelativePosition{X: 0.5, Y: 0.25},
		PositionOf(Interaction{Type: InteractionPosition, X: 0.5, Y: 0.25}))
	assert.Equal(t, RelativePosition{X: 1, Y: 0},
		PositionOf(Interaction{Type: InteractionPosition, X: 700, Y: -3, Width: 640, Height: 360}))
	assert.Equal(t, RelativePosition{X: 0, Y: 1},
		PositionOf(Interaction{Type: InteractionPosition, X: math.NaN(), Y: 9}))
}

func TestAbsolute(t *testing.T) {
	x, y := RelativePosition{X: 0.5, Y: 0.25}.Absolute(1920, 1080)
	assert.Equal(t, 960.0, x)
	assert.Equal(t, 270.0, y)
}

func TestRelativePositionJSON(t *testing.T) {
	b, err := json.Marshal(RelativePosition{X: 0.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":0.5,"y":0}`, string(b))
}
