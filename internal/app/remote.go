// Package app ties a desktop backend to the capture worker, the encode
// pipeline and the broadcast hub.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"weblinuxremote/internal/capture"
	"weblinuxremote/internal/clients"
	"weblinuxremote/internal/config"
	"weblinuxremote/internal/input"
	"weblinuxremote/internal/stream"
)

var (
	ErrNotStarted     = errors.New("remote session not started")
	ErrAlreadyStarted = errors.New("remote session already started")
)

// Remote is one remote-control context. It is created with New, brought
// up with Start and torn down with Close.
type Remote struct {
	cfg     *config.Config
	backend Backend
	hub     *clients.Hub
	logger  *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu       sync.RWMutex
	started  bool
	err      error
	link     *Link
	worker   *capture.Worker
	frames   *capture.Frames
	injector *input.Injector
}

func New(cfg *config.Config, backend Backend, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Remote{
		cfg:     cfg,
		backend: backend,
		hub:     clients.NewHub(logger),
		logger:  logger.With("component", "remote"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Params returns the capture parameters for cfg.
func Params(cfg *config.Config) capture.Params {
	p := capture.DefaultParams()
	p.DefaultFramerate = capture.Fraction{Num: uint32(cfg.Framerate), Denom: 1}
	p.MaxSize = capture.Size{Width: uint32(cfg.MaxWidth), Height: uint32(cfg.MaxHeight)}
	return p
}

// Start opens the backend, starts capturing and launches the pipeline.
// ctx bounds the setup only. A failure is kept and returned by Subscribe
// and Injector afterwards.
func (r *Remote) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	if err := r.start(ctx); err != nil {
		r.err = err
		return err
	}
	return nil
}

func (r *Remote) start(ctx context.Context) error {
	link, err := r.backend.Open(ctx)
	if err != nil {
		return fmt.Errorf("negotiation failed: %w", err)
	}

	worker := capture.NewWorker(link.Capture, Params(r.cfg), r.logger)
	frames, err := worker.StartStreaming(r.ctx)
	if err != nil {
		if link.Close != nil {
			link.Close()
		}
		return fmt.Errorf("start streaming: %w", err)
	}

	r.link = link
	r.worker = worker
	r.frames = frames
	r.injector = input.NewInjector(link.Device,
		input.WithHold(r.cfg.KeyHold),
		input.WithLogger(r.logger))

	pipeline := stream.NewPipeline(r.hub, stream.NewJPEGEncoder(r.cfg.JPEGQuality), r.cfg.IdleSleep, r.logger)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := pipeline.Run(r.ctx, frames.C()); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("pipeline stopped", "error", err)
		}
	}()

	r.logger.Info("remote session started", "backend", r.cfg.Backend)
	return nil
}

func (r *Remote) ready() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.err != nil:
		return r.err
	case r.injector == nil:
		return ErrNotStarted
	}
	return nil
}

// Subscribe adds a viewer of the encoded frames.
func (r *Remote) Subscribe() (*clients.Subscription, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.hub.Subscribe(), nil
}

// Injector returns the session's input injector.
func (r *Remote) Injector() (*input.Injector, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.injector, nil
}

// SourceSize is the negotiated capture size, or the size the backend
// reported while no format has been negotiated yet.
func (r *Remote) SourceSize() (int, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.worker != nil {
		if f, ok := r.worker.Format(); ok && f.Size.Width > 0 && f.Size.Height > 0 {
			return int(f.Size.Width), int(f.Size.Height), true
		}
	}
	if r.link != nil && r.link.Width > 0 && r.link.Height > 0 {
		return r.link.Width, r.link.Height, true
	}
	return 0, 0, false
}

// Close ends every subscription, stops capture and waits for the pipeline.
// Only the first call has an effect.
func (r *Remote) Close() {
	r.closeOnce.Do(r.close)
}

func (r *Remote) close() {
	r.hub.Close()
	r.cancel()

	r.mu.RLock()
	frames, link := r.frames, r.link
	r.mu.RUnlock()
	if frames != nil {
		frames.Close()
	}
	r.wg.Wait()
	if link != nil && link.Close != nil {
		link.Close()
	}
	r.logger.Info("remote session closed")
}
