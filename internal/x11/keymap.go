package x11

import (
	"fmt"
	"math"
	"strings"

	"weblinuxremote/internal/input"
)

// robotgo names keys differently from the key table.
var specialKeys = map[input.Key]string{
	input.ArrowDown:    "down",
	input.ArrowLeft:    "left",
	input.ArrowRight:   "right",
	input.ArrowUp:      "up",
	input.Escape:       "esc",
	input.Tab:          "tab",
	input.Backspace:    "backspace",
	input.Enter:        "enter",
	input.Space:        "space",
	input.LeftShift:    "shift",
	input.RightShift:   "rshift",
	input.LeftControl:  "ctrl",
	input.RightControl: "rctrl",
	input.CapsLock:     "capslock",
	input.ShiftLock:    "capslock",
	input.Insert:       "insert",
	input.Delete:       "delete",
	input.Home:         "home",
	input.End:          "end",
	input.PageUp:       "pageup",
	input.PageDown:     "pagedown",
}

// maxFunctionKey is the highest function key robotgo can press.
const maxFunctionKey = 24

// unshifted are the printable characters robotgo presses by name on a US
// layout without shift.
const unshifted = "abcdefghijklmnopqrstuvwxyz0123456789`-=[]\\;',./"

// keyAction is how a keysym reaches the X server: a robotgo key pressed
// and released by name, or a character typed whole.
type keyAction struct {
	name string
	text rune
}

// resolveKeysym maps a keysym to a keyAction.
func resolveKeysym(sym int32) (keyAction, error) {
	if k, ok := input.KeyBySymbol(sym); ok {
		if name, ok := specialKeys[k]; ok {
			return keyAction{name: name}, nil
		}
		if k >= input.F1 && k <= input.F35 {
			n := int(k-input.F1) + 1
			if n > maxFunctionKey {
				return keyAction{}, fmt.Errorf("no x11 key for %s", k)
			}
			return keyAction{name: fmt.Sprintf("f%d", n)}, nil
		}
	}
	switch {
	case sym > 0x20 && sym < 0x7f && strings.ContainsRune(unshifted, rune(sym)):
		return keyAction{name: string(rune(sym))}, nil
	case sym > 0x20 && sym < 0x7f, sym >= 0xa0 && sym <= 0xff:
		return keyAction{text: rune(sym)}, nil
	case sym&^0x00ffffff == 0x01000000:
		return keyAction{text: rune(sym & 0x00ffffff)}, nil
	}
	return keyAction{}, fmt.Errorf("no x11 key for keysym %#x", sym)
}

func buttonName(b input.Button) string {
	if b == input.ButtonMiddle {
		return "center"
	}
	return string(b)
}

// scrollSteps converts a pixel delta to wheel clicks, keeping the sign of
// small non-zero deltas.
func scrollSteps(delta float64) int {
	const pixelsPerStep = 40
	steps := int(math.Round(delta / pixelsPerStep))
	switch {
	case steps == 0 && delta > 0:
		return 1
	case steps == 0 && delta < 0:
		return -1
	}
	return steps
}
