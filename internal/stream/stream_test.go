package stream

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weblinuxremote/internal/capture"
	"weblinuxremote/internal/clients"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func solid(format capture.PixelFormat, w, h, stride int, px []byte) capture.RawFrame {
	data := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(data[y*stride+x*len(px):], px)
		}
	}
	return capture.RawFrame{Format: format, Width: w, Height: h, Stride: stride, Data: data}
}

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func TestEncodePackedFormats(t *testing.T) {
	enc := NewJPEGEncoder(DefaultQuality)
	tests := []struct {
		name  string
		frame capture.RawFrame
	}{
		{"RGB", solid(capture.FormatRGB, 4, 4, 12, []byte{0, 0, 255})},
		{"BGR", solid(capture.FormatBGR, 4, 4, 12, []byte{255, 0, 0})},
		{"RGBA", solid(capture.FormatRGBA, 8, 8, 32, []byte{0, 0, 255, 0})},
		{"BGRx padded", solid(capture.FormatBGRx, 8, 8, 40, []byte{255, 0, 0, 0})},
		{"BGRA", solid(capture.FormatBGRA, 8, 2, 32, []byte{255, 0, 0, 255})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := enc.Encode(tt.frame)
			require.NoError(t, err)
			img := decode(t, b)
			assert.Equal(t, tt.frame.Width, img.Bounds().Dx())
			assert.Equal(t, tt.frame.Height, img.Bounds().Dy())

			r, g, bl, _ := img.At(1, 1).RGBA()
			assert.Greater(t, bl>>8, uint32(200), "pixel should be blue")
			assert.Less(t, r>>8, uint32(60))
			assert.Less(t, g>>8, uint32(60))
		})
	}
}

func TestEncodeYUV(t *testing.T) {
	enc := NewJPEGEncoder(DefaultQuality)

	yuy2 := solid(capture.FormatYUY2, 4, 2, 8, []byte{128, 128, 128, 128})
	b, err := enc.Encode(yuy2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), decode(t, b).Bounds())

	i420 := capture.RawFrame{Format: capture.FormatI420, Width: 6, Height: 4, Stride: 6, Data: bytes.Repeat([]byte{128}, 6*4+2*3*2)}
	b, err = enc.Encode(i420)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), decode(t, b).Bounds())
}

func TestEncodeRejectsBadFrames(t *testing.T) {
	enc := NewJPEGEncoder(0)

	_, err := enc.Encode(capture.RawFrame{Format: capture.FormatUnknown, Width: 2, Height: 2, Data: make([]byte, 16)})
	assert.ErrorIs(t, err, capture.ErrUnsupportedFormat)

	_, err = enc.Encode(capture.RawFrame{Format: capture.FormatRGB, Width: 4, Height: 4, Stride: 12, Data: make([]byte, 20)})
	assert.ErrorContains(t, err, "short RGB frame")

	_, err = enc.Encode(capture.RawFrame{Format: capture.FormatRGB})
	assert.Error(t, err)
}

type countingEncoder struct {
	calls atomic.Int32
	fail  bool
}

func (c *countingEncoder) Encode(f capture.RawFrame) ([]byte, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("boom")
	}
	return []byte{byte(f.Width)}, nil
}

func rgb4x4() capture.RawFrame {
	return solid(capture.FormatRGB, 4, 4, 12, []byte{10, 20, 30})
}

func TestPipelineEndToEnd(t *testing.T) {
	hub := clients.NewHub(quiet())
	sub := hub.Subscribe()
	p := NewPipeline(hub, NewJPEGEncoder(DefaultQuality), time.Second, quiet())

	frames := make(chan capture.RawFrame)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), frames) }()

	frames <- rgb4x4()
	f, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), decode(t, f.Bytes()).Bounds())

	close(frames)
	require.NoError(t, <-done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sub.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "exactly one frame is published")
}

func TestPipelineBackpressure(t *testing.T) {
	const idle = 100 * time.Millisecond
	hub := clients.NewHub(quiet())
	enc := &countingEncoder{}
	p := NewPipeline(hub, enc, idle, quiet())

	frames := make(chan capture.RawFrame)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx, frames) }()

	start := time.Now()
	frames <- rgb4x4()
	sub := hub.Subscribe()
	defer sub.Close()

	time.Sleep(idle / 2)
	assert.Equal(t, int32(0), enc.calls.Load(), "idle frame must not be encoded")

	// The pipeline is asleep and cannot take the next frame yet.
	frames <- rgb4x4()
	assert.GreaterOrEqual(t, time.Since(start), idle)

	_, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), enc.calls.Load())
}

func TestPipelineSkipsFailedFrames(t *testing.T) {
	hub := clients.NewHub(quiet())
	sub := hub.Subscribe()
	enc := &countingEncoder{fail: true}
	p := NewPipeline(hub, enc, time.Second, quiet())

	frames := make(chan capture.RawFrame)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), frames) }()

	frames <- rgb4x4()
	frames <- rgb4x4()
	close(frames)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), enc.calls.Load())

	hub.Close()
	_, err := sub.Recv(context.Background())
	assert.ErrorIs(t, err, clients.ErrClosed)
}

func TestPipelineStopsWhenHubCloses(t *testing.T) {
	hub := clients.NewHub(quiet())
	sub := hub.Subscribe()
	p := NewPipeline(hub, &countingEncoder{}, time.Second, quiet())
	hub.Close()
	_, err := sub.Recv(context.Background())
	require.ErrorIs(t, err, clients.ErrClosed)

	frames := make(chan capture.RawFrame, 1)
	frames <- rgb4x4()
	assert.NoError(t, p.Run(context.Background(), frames))
}
