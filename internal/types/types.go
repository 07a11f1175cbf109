package types

import (
	"errors"
	"fmt"

	"weblinuxremote/internal/input"
)

// InteractionType tags an Interaction.
type InteractionType string

const (
	InteractionPosition  InteractionType = "position"
	InteractionMouseDown InteractionType = "mouse_down"
	InteractionMouseUp   InteractionType = "mouse_up"
	InteractionScroll    InteractionType = "scroll"
	InteractionText      InteractionType = "text"
	InteractionKey       InteractionType = "key"
)

// Interaction is an input event sent by a viewer. Which fields are used
// depends on Type.
type Interaction struct {
	Type InteractionType `json:"type"`
	// Position: fractions of the view, or element pixels when Width and
	// Height are set.
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	// MouseDown, MouseUp. Empty means left.
	Button input.Button `json:"button,omitempty"`
	// Scroll, in pixels; positive scrolls down.
	Delta float64 `json:"delta,omitempty"`
	Text  string  `json:"text,omitempty"`
	// Key, held down with Modifiers.
	Key       input.Key   `json:"key,omitempty"`
	Modifiers []input.Key `json:"modifiers,omitempty"`
}

func (i Interaction) Validate() error {
	switch i.Type {
	case InteractionPosition:
		if i.Width < 0 || i.Height < 0 {
			return errors.New("negative element size")
		}
	case InteractionMouseDown, InteractionMouseUp:
		if i.Button != "" {
			if _, ok := i.Button.Code(); !ok {
				return fmt.Errorf("unknown button %q", i.Button)
			}
		}
	case InteractionScroll, InteractionText:
	case InteractionKey:
		if !i.Key.Valid() {
			return errors.New("missing key")
		}
	default:
		return fmt.Errorf("unknown interaction type %q", i.Type)
	}
	return nil
}

// RelativePosition is a point as a fraction of the capture source, each
// axis in [0, 1].
type RelativePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionOf converts a position interaction to a relative position.
func PositionOf(i Interaction) RelativePosition {
	x, y := i.X, i.Y
	if i.Width > 0 && i.Height > 0 {
		x, y = x/i.Width, y/i.Height
	}
	return RelativePosition{X: clamp(x), Y: clamp(y)}
}

// Absolute scales p to a source of the given size in pixels.
func (p RelativePosition) Absolute(width, height int) (float64, float64) {
	return p.X * float64(width), p.Y * float64(height)
}

func clamp(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
