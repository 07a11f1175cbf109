// Package capture runs a blocking capture loop on a dedicated OS thread and
// hands its frames to the rest of the program one at a time.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	ErrAlreadyStreaming  = errors.New("already streaming")
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
)

// Handler receives events from a capture loop, on the loop's thread.
type Handler interface {
	OnFormat(Format)
	// OnFrame blocks until the frame is consumed. It returns false when the
	// loop should stop.
	OnFrame(RawFrame) bool
}

// Stream is a connected capture loop.
type Stream interface {
	// Run blocks until the loop stops.
	Run() error
	// Stop makes Run return. It may be called from any goroutine.
	Stop()
	// Close frees the stream after Run has returned.
	Close() error
}

// Backend connects capture streams. Connect is called on the thread that
// will later call Run.
type Backend interface {
	Connect(ctx context.Context, params Params, h Handler) (Stream, error)
}

// Worker owns the capture thread of one session.
type Worker struct {
	backend Backend
	params  Params
	logger  *slog.Logger

	mu     sync.Mutex
	active *Frames
	format atomic.Pointer[Format]
}

// NewWorker creates a worker. A nil logger uses slog.Default.
func NewWorker(backend Backend, params Params, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		backend: backend,
		params:  params,
		logger:  logger.With("component", "capture"),
	}
}

// Format returns the most recently negotiated format.
func (w *Worker) Format() (Format, bool) {
	f := w.format.Load()
	if f == nil {
		return Format{}, false
	}
	return *f, true
}

// StartStreaming connects the capture stream on a new locked OS thread and
// returns its frames. Setup errors are returned here; later errors are
// logged and close the frame channel. Only one Frames may be open at a time.
func (w *Worker) StartStreaming(ctx context.Context) (*Frames, error) {
	w.mu.Lock()
	if w.active != nil {
		w.mu.Unlock()
		return nil, ErrAlreadyStreaming
	}
	frames := &Frames{
		c:    make(chan RawFrame),
		done: make(chan struct{}),
	}
	frames.release = func() { w.release(frames) }
	w.active = frames
	w.mu.Unlock()

	ready := make(chan error, 1)
	go w.run(ctx, frames, ready)
	if err := <-ready; err != nil {
		frames.Close()
		return nil, err
	}
	return frames, nil
}

func (w *Worker) release(f *Frames) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == f {
		w.active = nil
	}
}

func (w *Worker) run(ctx context.Context, f *Frames, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(f.c)

	stream, err := w.backend.Connect(ctx, w.params, &handler{w: w, f: f, ctx: ctx})
	if err != nil {
		ready <- fmt.Errorf("connecting capture stream: %w", err)
		return
	}
	ready <- nil
	w.logger.Info("capture stream connected")

	var wg sync.WaitGroup
	exited := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-f.done:
		case <-ctx.Done():
		case <-exited:
			return
		}
		stream.Stop()
	}()

	if err := stream.Run(); err != nil {
		w.logger.Error("capture loop failed", "error", err)
	}
	close(exited)
	wg.Wait()

	if err := stream.Close(); err != nil {
		w.logger.Warn("closing capture stream", "error", err)
	}
	w.logger.Info("capture stream stopped")
}

type handler struct {
	w   *Worker
	f   *Frames
	ctx context.Context
}

func (h *handler) OnFormat(f Format) {
	h.w.format.Store(&f)
	h.w.logger.Info("capture format negotiated",
		"format", f.Pixel.String(),
		"width", f.Size.Width,
		"height", f.Size.Height,
		"framerate", fmt.Sprintf("%d/%d", f.Framerate.Num, f.Framerate.Denom))
}

func (h *handler) OnFrame(frame RawFrame) bool {
	select {
	case h.f.c <- frame:
		return true
	case <-h.f.done:
		return false
	case <-h.ctx.Done():
		return false
	}
}

// Frames is the receiving end of a capture stream. Each receive from C is
// a rendezvous with the capture thread.
type Frames struct {
	c       chan RawFrame
	done    chan struct{}
	once    sync.Once
	release func()
}

// C returns the frame channel. It is closed when the capture loop exits.
func (f *Frames) C() <-chan RawFrame { return f.c }

// Close stops the capture loop and allows the worker to stream again.
func (f *Frames) Close() {
	f.once.Do(func() {
		close(f.done)
		f.release()
	})
}
