// Package input injects synthetic keyboard and pointer events into a desktop
// session. Keys are identified by the closed Key table and sent as X11 keysyms.
package input

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultHold is how long a key stays down. Host input stacks drop down/up
// pairs that arrive together.
const DefaultHold = 10 * time.Millisecond

// Device receives raw synthetic input for one session.
type Device interface {
	NotifyKeysym(ctx context.Context, sym int32, pressed bool) error
	NotifyPointerAbsolute(ctx context.Context, x, y float64) error
	NotifyButton(ctx context.Context, code int32, pressed bool) error
	NotifyScroll(ctx context.Context, dx, dy float64) error
}

// Injector turns logical key presses, pointer moves, button presses and text
// into Device calls with the right timing and ordering.
type Injector struct {
	dev    Device
	hold   time.Duration
	logger *slog.Logger
}

// Option configures an Injector.
type Option func(*Injector)

// WithHold sets the key hold duration.
func WithHold(d time.Duration) Option {
	return func(in *Injector) { in.hold = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Injector) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// NewInjector creates an injector for dev.
func NewInjector(dev Device, opts ...Option) *Injector {
	in := &Injector{
		dev:    dev,
		hold:   DefaultHold,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Press presses and releases key.
func (in *Injector) Press(ctx context.Context, key Key) error {
	return in.PressWithModifiers(ctx, key)
}

// PressWithModifiers holds the modifiers in order, taps key, then releases
// the modifiers last-pressed first. Every key that went down is released,
// even when ctx ends during the hold.
func (in *Injector) PressWithModifiers(ctx context.Context, key Key, modifiers ...Key) (err error) {
	held := 0
	defer func() {
		release := context.WithoutCancel(ctx)
		for i := held - 1; i >= 0; i-- {
			if uerr := in.set(release, modifiers[i], false); uerr != nil && err == nil {
				err = uerr
			}
		}
	}()
	for _, m := range modifiers {
		if err := in.set(ctx, m, true); err != nil {
			return err
		}
		held++
	}
	return in.tap(ctx, key.Symbol(), key.Name())
}

// MovePointerAbsolute moves the pointer to (x, y) in the capture source's
// pixel space.
func (in *Injector) MovePointerAbsolute(ctx context.Context, x, y float64) error {
	if err := in.dev.NotifyPointerAbsolute(ctx, x, y); err != nil {
		return fmt.Errorf("move pointer to (%.1f, %.1f): %w", x, y, err)
	}
	return nil
}

// PressButton presses a mouse button.
func (in *Injector) PressButton(ctx context.Context, b Button) error {
	return in.button(ctx, b, true)
}

// ReleaseButton releases a mouse button.
func (in *Injector) ReleaseButton(ctx context.Context, b Button) error {
	return in.button(ctx, b, false)
}

func (in *Injector) button(ctx context.Context, b Button, pressed bool) error {
	code, ok := b.Code()
	if !ok {
		return fmt.Errorf("unknown mouse button %q", b)
	}
	if err := in.dev.NotifyButton(ctx, code, pressed); err != nil {
		return fmt.Errorf("set button %s to %s: %w", b, stateName(pressed), err)
	}
	return nil
}

// Scroll scrolls vertically by dy pixels; positive scrolls down.
func (in *Injector) Scroll(ctx context.Context, dy float64) error {
	if dy == 0 {
		return nil
	}
	if err := in.dev.NotifyScroll(ctx, 0, dy); err != nil {
		return fmt.Errorf("scroll by %.1f: %w", dy, err)
	}
	return nil
}

// TypeText types s one rune at a time. Runes without a keysym are skipped.
func (in *Injector) TypeText(ctx context.Context, s string) error {
	for _, r := range s {
		sym, ok := RuneSymbol(r)
		if !ok {
			in.logger.Debug("skipping rune without keysym", "rune", string(r))
			continue
		}
		if err := in.tap(ctx, sym, fmt.Sprintf("%q", r)); err != nil {
			return err
		}
	}
	return nil
}

func (in *Injector) tap(ctx context.Context, sym int32, name string) error {
	if err := in.dev.NotifyKeysym(ctx, sym, true); err != nil {
		return fmt.Errorf("set key '%s' to pressed: %w", name, err)
	}
	holdErr := sleep(ctx, in.hold)
	if err := in.dev.NotifyKeysym(context.WithoutCancel(ctx), sym, false); err != nil {
		return fmt.Errorf("set key '%s' to released: %w", name, err)
	}
	return holdErr
}

func (in *Injector) set(ctx context.Context, key Key, pressed bool) error {
	if err := in.dev.NotifyKeysym(ctx, key.Symbol(), pressed); err != nil {
		return fmt.Errorf("set key '%s' to %s: %w", key, stateName(pressed), err)
	}
	return nil
}

func stateName(pressed bool) string {
	if pressed {
		return "pressed"
	}
	return "released"
}

func sleep(ctx context.Context, d time.Duration) error {
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

// RuneSymbol maps a rune to the X11 keysym that types it.
func RuneSymbol(r rune) (int32, bool) {
	switch {
	case r == '\n' || r == '\r':
		return Enter.Symbol(), true
	case r == '\t':
		return Tab.Symbol(), true
	case r == '\b':
		return Backspace.Symbol(), true
	case r < 0x20 || (r >= 0x7f && r < 0xa0):
		return 0, false
	case r < 0x100:
		return int32(r), true
	case r > 0x10ffff:
		return 0, false
	default:
		return 0x01000000 | int32(r), true
	}
}
