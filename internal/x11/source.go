// Package x11 is the fallback backend for sessions without a desktop
// portal: it polls screenshots of one display and injects input through
// the X server.
package x11

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/kbinani/screenshot"

	"weblinuxremote/internal/capture"
)

// Source is a capture.Backend that polls one display.
type Source struct {
	display int
	logger  *slog.Logger
	grab    func(image.Rectangle) (*image.RGBA, error)
}

// NewSource returns a source for the given display index.
func NewSource(display int, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		display: display,
		logger:  logger.With("component", "x11", "display", display),
		grab:    screenshot.CaptureRect,
	}
}

// DisplayBounds returns the bounds of a display in virtual screen
// coordinates.
func DisplayBounds(display int) (image.Rectangle, error) {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		return image.Rectangle{}, fmt.Errorf("display %d not found, %d active", display, n)
	}
	return screenshot.GetDisplayBounds(display), nil
}

// Connect resolves the display. Frames are captured at the default frame
// rate of params.
func (s *Source) Connect(_ context.Context, params capture.Params, h capture.Handler) (capture.Stream, error) {
	bounds, err := DisplayBounds(s.display)
	if err != nil {
		return nil, err
	}
	return s.stream(bounds, params.DefaultFramerate, h), nil
}

func (s *Source) stream(bounds image.Rectangle, rate capture.Fraction, h capture.Handler) *pollStream {
	interval := rate.Interval()
	if interval <= 0 {
		interval = time.Second / 25
	}
	return &pollStream{
		src:      s,
		bounds:   bounds,
		rate:     rate,
		interval: interval,
		handler:  h,
		stop:     make(chan struct{}),
	}
}

type pollStream struct {
	src      *Source
	bounds   image.Rectangle
	rate     capture.Fraction
	interval time.Duration
	handler  capture.Handler
	stop     chan struct{}
	once     sync.Once
}

func (p *pollStream) Run() error {
	p.handler.OnFormat(capture.Format{
		Pixel:     capture.FormatRGBA,
		Size:      capture.Size{Width: uint32(p.bounds.Dx()), Height: uint32(p.bounds.Dy())},
		Framerate: p.rate,
	})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		img, err := p.src.grab(p.bounds)
		if err != nil {
			p.src.logger.Warn("screenshot failed", "error", err)
		} else {
			frame := capture.RawFrame{
				Format: capture.FormatRGBA,
				Width:  img.Rect.Dx(),
				Height: img.Rect.Dy(),
				Stride: img.Stride,
				Data:   img.Pix,
			}
			if !p.handler.OnFrame(frame) {
				return nil
			}
		}

		select {
		case <-p.stop:
			return nil
		case <-ticker.C:
		}
	}
}

func (p *pollStream) Stop() {
	p.once.Do(func() { close(p.stop) })
}

func (p *pollStream) Close() error { return nil }
