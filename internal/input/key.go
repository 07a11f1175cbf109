package input

import (
	"fmt"
	"strings"
)

// Key is a logical keyboard key. The zero value is not a key.
type Key uint8

const (
	ArrowDown Key = iota + 1
	ArrowLeft
	ArrowRight
	ArrowUp
	Escape
	Tab
	Backspace
	Enter
	Space

	LeftShift
	RightShift
	LeftControl
	RightControl
	CapsLock
	ShiftLock

	Insert
	Delete
	Home
	End
	PageUp
	PageDown

	Colon
	Comma
	Backslash
	Slash
	Pipe
	Questionmark
	Exclamationmark
	OpenBracket
	CloseBracket
	OpenCurlyBracket
	CloseCurlyBracket
	Backtick
	Minus
	Period
	Plus
	Equals
	Semicolon
	Quote

	Num0
	Num1
	Num2
	Num3
	Num4
	Num5
	Num6
	Num7
	Num8
	Num9

	A
	B
	C
	D
	E
	F
	G
	H
	I
	J
	K
	L
	M
	N
	O
	P
	Q
	R
	S
	T
	U
	V
	W
	X
	Y
	Z

	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	F13
	F14
	F15
	F16
	F17
	F18
	F19
	F20
	F21
	F22
	F23
	F24
	F25
	F26
	F27
	F28
	F29
	F30
	F31
	F32
	F33
	F34
	F35

	keyCount = int(F35)
)

type keyInfo struct {
	name   string
	symbol int32
}

// keyTable holds the X11 keysym and English name of every key.
var keyTable = [keyCount + 1]keyInfo{
	ArrowDown:  {"Down", 0xff54},
	ArrowLeft:  {"Left", 0xff51},
	ArrowRight: {"Right", 0xff53},
	ArrowUp:    {"Up", 0xff52},
	Escape:     {"Escape", 0xff1b},
	Tab:        {"Tab", 0xff09},
	Backspace:  {"Backspace", 0xff08},
	Enter:      {"Enter", 0xff0d},
	Space:      {"Space", 0x0020},

	LeftShift:    {"Left shift", 0xffe1},
	RightShift:   {"Right shift", 0xffe2},
	LeftControl:  {"Left control", 0xffe3},
	RightControl: {"Right control", 0xffe4},
	CapsLock:     {"Caps lock", 0xffe5},
	ShiftLock:    {"Shift lock", 0xffe6},

	Insert:   {"Insert", 0xff63},
	Delete:   {"Delete", 0xffff},
	Home:     {"Home", 0xff50},
	End:      {"End", 0xff57},
	PageUp:   {"PageUp", 0xff55},
	PageDown: {"PageDown", 0xff56},

	Colon:             {"Colon", 0x003a},
	Comma:             {"Comma", 0x002c},
	Backslash:         {"Backslash", 0x005c},
	Slash:             {"Slash", 0x002f},
	Pipe:              {"Pipe", 0x007c},
	Questionmark:      {"Question mark", 0x003f},
	Exclamationmark:   {"Exclamation mark", 0x0021},
	OpenBracket:       {"Open bracket", 0x005b},
	CloseBracket:      {"Close bracket", 0x005d},
	OpenCurlyBracket:  {"Open curly bracket", 0x007b},
	CloseCurlyBracket: {"Close curly bracket", 0x007d},
	Backtick:          {"Backtick", 0x0060},
	Minus:             {"Minus", 0x002d},
	Period:            {"Period", 0x002e},
	Plus:              {"Plus", 0x002b},
	Equals:            {"Equals", 0x003d},
	Semicolon:         {"Semicolon", 0x003b},
	Quote:             {"Quote", 0x0027},

	Num0: {"0", 0x0030},
	Num1: {"1", 0x0031},
	Num2: {"2", 0x0032},
	Num3: {"3", 0x0033},
	Num4: {"4", 0x0034},
	Num5: {"5", 0x0035},
	Num6: {"6", 0x0036},
	Num7: {"7", 0x0037},
	Num8: {"8", 0x0038},
	Num9: {"9", 0x0039},

	A: {"A", 0x0061},
	B: {"B", 0x0062},
	C: {"C", 0x0063},
	D: {"D", 0x0064},
	E: {"E", 0x0065},
	F: {"F", 0x0066},
	G: {"G", 0x0067},
	H: {"H", 0x0068},
	I: {"I", 0x0069},
	J: {"J", 0x006a},
	K: {"K", 0x006b},
	L: {"L", 0x006c},
	M: {"M", 0x006d},
	N: {"N", 0x006e},
	O: {"O", 0x006f},
	P: {"P", 0x0070},
	Q: {"Q", 0x0071},
	R: {"R", 0x0072},
	S: {"S", 0x0073},
	T: {"T", 0x0074},
	U: {"U", 0x0075},
	V: {"V", 0x0076},
	W: {"W", 0x0077},
	X: {"X", 0x0078},
	Y: {"Y", 0x0079},
	Z: {"Z", 0x007a},

	F1:  {"F1", 0xffbe},
	F2:  {"F2", 0xffbf},
	F3:  {"F3", 0xffc0},
	F4:  {"F4", 0xffc1},
	F5:  {"F5", 0xffc2},
	F6:  {"F6", 0xffc3},
	F7:  {"F7", 0xffc4},
	F8:  {"F8", 0xffc5},
	F9:  {"F9", 0xffc6},
	F10: {"F10", 0xffc7},
	F11: {"F11", 0xffc8},
	F12: {"F12", 0xffc9},
	F13: {"F13", 0xffca},
	F14: {"F14", 0xffcb},
	F15: {"F15", 0xffcc},
	F16: {"F16", 0xffcd},
	F17: {"F17", 0xffce},
	F18: {"F18", 0xffcf},
	F19: {"F19", 0xffd0},
	F20: {"F20", 0xffd1},
	F21: {"F21", 0xffd2},
	F22: {"F22", 0xffd3},
	F23: {"F23", 0xffd4},
	F24: {"F24", 0xffd5},
	F25: {"F25", 0xffd6},
	F26: {"F26", 0xffd7},
	F27: {"F27", 0xffd8},
	F28: {"F28", 0xffd9},
	F29: {"F29", 0xffda},
	F30: {"F30", 0xffdb},
	F31: {"F31", 0xffdc},
	F32: {"F32", 0xffdd},
	F33: {"F33", 0xffde},
	F34: {"F34", 0xffdf},
	F35: {"F35", 0xffe0},
}

var (
	keysByName   = make(map[string]Key, keyCount)
	keysBySymbol = make(map[int32]Key, keyCount)
)

func init() {
	for k := Key(1); int(k) <= keyCount; k++ {
		keysByName[strings.ToLower(k.Name())] = k
		keysBySymbol[k.Symbol()] = k
	}
}

// Keys returns every key in declaration order.
func Keys() []Key {
	keys := make([]Key, 0, keyCount)
	for k := Key(1); int(k) <= keyCount; k++ {
		keys = append(keys, k)
	}
	return keys
}

// Valid reports whether k is a declared key.
func (k Key) Valid() bool { return k >= 1 && int(k) <= keyCount }

// Name is the human-readable English name.
func (k Key) Name() string {
	if !k.Valid() {
		return fmt.Sprintf("Key(%d)", uint8(k))
	}
	return keyTable[k].name
}

// Symbol is the X11 keysym.
func (k Key) Symbol() int32 {
	if !k.Valid() {
		return 0
	}
	return keyTable[k].symbol
}

func (k Key) String() string { return k.Name() }

// KeyByName looks a key up by its name, ignoring case.
func KeyByName(name string) (Key, bool) {
	k, ok := keysByName[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// KeyBySymbol looks a key up by its keysym.
func KeyBySymbol(sym int32) (Key, bool) {
	k, ok := keysBySymbol[sym]
	return k, ok
}

func (k Key) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid key %d", uint8(k))
	}
	return []byte(k.Name()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	key, ok := KeyByName(string(text))
	if !ok {
		return fmt.Errorf("unknown key %q", text)
	}
	*k = key
	return nil
}
