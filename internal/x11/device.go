//go:build cgo

package x11

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/go-vgo/robotgo"

	"weblinuxremote/internal/input"
)

// Device injects input through the X server with robotgo. Pointer
// coordinates are relative to the captured display.
type Device struct {
	origin image.Point
}

// NewDevice returns a device for the given display index.
func NewDevice(display int) (*Device, error) {
	bounds, err := DisplayBounds(display)
	if err != nil {
		return nil, err
	}
	return &Device{origin: bounds.Min}, nil
}

func (d *Device) NotifyKeysym(_ context.Context, sym int32, pressed bool) error {
	a, err := resolveKeysym(sym)
	if err != nil {
		return err
	}
	if a.name == "" {
		if pressed {
			robotgo.UnicodeType(uint32(a.text))
		}
		return nil
	}
	if pressed {
		return robotgo.KeyDown(a.name)
	}
	return robotgo.KeyUp(a.name)
}

func (d *Device) NotifyPointerAbsolute(_ context.Context, x, y float64) error {
	robotgo.Move(d.origin.X+int(math.Round(x)), d.origin.Y+int(math.Round(y)))
	return nil
}

func (d *Device) NotifyButton(_ context.Context, code int32, pressed bool) error {
	b, ok := input.ButtonByCode(code)
	if !ok {
		return fmt.Errorf("unknown button code %#x", code)
	}
	state := "up"
	if pressed {
		state = "down"
	}
	return robotgo.Toggle(buttonName(b), state)
}

func (d *Device) NotifyScroll(_ context.Context, dx, dy float64) error {
	robotgo.Scroll(scrollSteps(dx), -scrollSteps(dy))
	return nil
}
