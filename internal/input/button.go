package input

import "fmt"

// Button is a mouse button as named on the wire.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Linux evdev button codes (linux/input-event-codes.h).
const (
	btnLeft   int32 = 0x110
	btnRight  int32 = 0x111
	btnMiddle int32 = 0x112
)

// Code returns the evdev code for b.
func (b Button) Code() (int32, bool) {
	switch b {
	case ButtonLeft:
		return btnLeft, true
	case ButtonRight:
		return btnRight, true
	case ButtonMiddle:
		return btnMiddle, true
	}
	return 0, false
}

// ButtonByCode is the inverse of Code.
func ButtonByCode(code int32) (Button, bool) {
	switch code {
	case btnLeft:
		return ButtonLeft, true
	case btnRight:
		return ButtonRight, true
	case btnMiddle:
		return ButtonMiddle, true
	}
	return "", false
}

func (b *Button) UnmarshalText(text []byte) error {
	switch v := Button(text); v {
	case ButtonLeft, ButtonRight, ButtonMiddle:
		*b = v
		return nil
	case "primary":
		*b = ButtonLeft
		return nil
	case "secondary":
		*b = ButtonRight
		return nil
	case "auxiliary", "center":
		*b = ButtonMiddle
		return nil
	}
	return fmt.Errorf("unknown mouse button %q", text)
}
