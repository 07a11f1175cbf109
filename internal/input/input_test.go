package input

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind    string
	sym     int32
	pressed bool
	x, y    float64
}

type recorder struct {
	mu     sync.Mutex
	events []event
	failOn int // 1-based index of the keysym call that fails, 0 for never
	calls  int
}

func (r *recorder) NotifyKeysym(_ context.Context, sym int32, pressed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failOn != 0 && r.calls == r.failOn {
		return errors.New("broker gone")
	}
	r.events = append(r.events, event{kind: "key", sym: sym, pressed: pressed})
	return nil
}

func (r *recorder) NotifyPointerAbsolute(_ context.Context, x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "move", x: x, y: y})
	return nil
}

func (r *recorder) NotifyButton(_ context.Context, code int32, pressed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "button", sym: code, pressed: pressed})
	return nil
}

func (r *recorder) NotifyScroll(_ context.Context, dx, dy float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "scroll", x: dx, y: dy})
	return nil
}

func (r *recorder) keys() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.kind == "key" {
			out = append(out, e)
		}
	}
	return out
}

func down(k Key) event { return event{kind: "key", sym: k.Symbol(), pressed: true} }
func up(k Key) event   { return event{kind: "key", sym: k.Symbol(), pressed: false} }

func TestKeyTableIsTotalAndUnambiguous(t *testing.T) {
	keys := Keys()
	require.Len(t, keys, keyCount)

	symbols := make(map[int32]Key)
	names := make(map[string]Key)
	for _, k := range keys {
		require.True(t, k.Valid())
		assert.NotEmpty(t, k.Name(), "key %d has no name", k)
		assert.NotZero(t, k.Symbol(), "key %s has no symbol", k)

		if prev, dup := symbols[k.Symbol()]; dup {
			t.Errorf("%s and %s share symbol %#x", prev, k, k.Symbol())
		}
		symbols[k.Symbol()] = k
		if prev, dup := names[k.Name()]; dup {
			t.Errorf("%d and %d share name %q", prev, k, k.Name())
		}
		names[k.Name()] = k

		got, ok := KeyByName(k.Name())
		assert.True(t, ok)
		assert.Equal(t, k, got)
		got, ok = KeyBySymbol(k.Symbol())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
}

func TestKeySymbols(t *testing.T) {
	tests := []struct {
		key  Key
		name string
		sym  int32
	}{
		{Space, "Space", 0x20},
		{Tab, "Tab", 0xff09},
		{LeftShift, "Left shift", 0xffe1},
		{A, "A", 0x61},
		{Num7, "7", 0x37},
		{F1, "F1", 0xffbe},
		{F35, "F35", 0xffe0},
		{Quote, "Quote", 0x27},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.key.Name())
		assert.Equal(t, tt.sym, tt.key.Symbol(), tt.name)
	}
}

func TestInvalidKeyDoesNotPanic(t *testing.T) {
	var k Key
	assert.False(t, k.Valid())
	assert.Equal(t, int32(0), k.Symbol())
	assert.Equal(t, "Key(0)", k.Name())
	assert.Equal(t, int32(0), Key(250).Symbol())

	_, err := k.MarshalText()
	assert.Error(t, err)
}

func TestKeyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		K Key `json:"k"`
	}{LeftControl})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"Left control"}`, string(b))

	var v struct {
		K Key `json:"k"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"k":"backspace"}`), &v))
	assert.Equal(t, Backspace, v.K)

	assert.Error(t, json.Unmarshal([]byte(`{"k":"Hyper"}`), &v))
}

func TestPress(t *testing.T) {
	rec := &recorder{}
	in := NewInjector(rec, WithHold(0))

	require.NoError(t, in.Press(context.Background(), Space))
	assert.Equal(t, []event{down(Space), up(Space)}, rec.keys())
}

func TestPressHoldsKey(t *testing.T) {
	rec := &recorder{}
	in := NewInjector(rec, WithHold(15*time.Millisecond))

	start := time.Now()
	require.NoError(t, in.Press(context.Background(), Enter))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestPressWithModifiersNesting(t *testing.T) {
	rec := &recorder{}
	in := NewInjector(rec, WithHold(0))

	require.NoError(t, in.PressWithModifiers(context.Background(), T, LeftControl, LeftShift))
	assert.Equal(t, []event{
		down(LeftControl), down(LeftShift), down(T),
		up(T), up(LeftShift), up(LeftControl),
	}, rec.keys())
}

func TestPressFailureNamesKey(t *testing.T) {
	rec := &recorder{failOn: 2}
	in := NewInjector(rec, WithHold(0))

	err := in.PressWithModifiers(context.Background(), Tab, LeftShift)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tab")
	assert.Contains(t, err.Error(), "pressed")

	// The injector stays usable.
	rec.failOn = 0
	require.NoError(t, in.Press(context.Background(), Escape))
}

func TestPressRespectsCancellation(t *testing.T) {
	rec := &recorder{}
	in := NewInjector(rec, WithHold(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := in.Press(ctx, Space)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []event{down(Space), up(Space)}, rec.keys())
}

func TestCancelDuringHoldReleasesEveryKey(t *testing.T) {
	rec := &recorder{}
	in := NewInjector(rec, WithHold(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := in.PressWithModifiers(ctx, C, LeftControl, LeftShift)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []event{
		down(LeftControl), down(LeftShift), down(C),
		up(C), up(LeftShift), up(LeftControl),
	}, rec.keys())
}

func TestFailedPressReleasesHeldModifiers(t *testing.T) {
	rec := &recorder{failOn: 3}
	in := NewInjector(rec, WithHold(0))

	err := in.PressWithModifiers(context.Background(), C, LeftControl, LeftShift)
	require.Error(t, err)
	assert.Equal(t, []event{
		down(LeftControl), down(LeftShift),
		up(LeftShift), up(LeftControl),
	}, rec.keys())
}

func TestPointerAndButtons(t *testing.T) {
	rec := &recorder{}
	in := NewInjector(rec, WithHold(0))
	ctx := context.Background()

	require.NoError(t, in.MovePointerAbsolute(ctx, 960, 540))
	require.NoError(t, in.PressButton(ctx, ButtonLeft))
	require.NoError(t, in.ReleaseButton(ctx, ButtonLeft))
	require.NoError(t, in.Scroll(ctx, -33))
	require.NoError(t, in.Scroll(ctx, 0))
	assert.Error(t, in.PressButton(ctx, Button("thumb")))

	assert.Equal(t, []event{
		{kind: "move", x: 960, y: 540},
		{kind: "button", sym: 0x110, pressed: true},
		{kind: "button", sym: 0x110, pressed: false},
		{kind: "scroll", x: 0, y: -33},
	}, rec.events)
}

func TestTypeText(t *testing.T) {
	rec := &recorder{}
	in := NewInjector(rec, WithHold(0))

	require.NoError(t, in.TypeText(context.Background(), "aé€\n\x01"))
	assert.Equal(t, []event{
		{kind: "key", sym: 0x61, pressed: true}, {kind: "key", sym: 0x61},
		{kind: "key", sym: 0xe9, pressed: true}, {kind: "key", sym: 0xe9},
		{kind: "key", sym: 0x010020ac, pressed: true}, {kind: "key", sym: 0x010020ac},
		down(Enter), up(Enter),
	}, rec.keys())
}

func TestButtonUnmarshal(t *testing.T) {
	var b Button
	require.NoError(t, b.UnmarshalText([]byte("secondary")))
	assert.Equal(t, ButtonRight, b)
	assert.Error(t, b.UnmarshalText([]byte("thumb")))

	got, ok := ButtonByCode(0x112)
	assert.True(t, ok)
	assert.Equal(t, ButtonMiddle, got)
}
