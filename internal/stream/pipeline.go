package stream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"weblinuxremote/internal/capture"
	"weblinuxremote/internal/clients"
)

// DefaultIdleSleep is how long the pipeline pauses per frame while nobody
// is watching.
const DefaultIdleSleep = time.Second

type Encoder interface {
	Encode(capture.RawFrame) ([]byte, error)
}

// Pipeline encodes frames one at a time and publishes them to a hub.
type Pipeline struct {
	hub       *clients.Hub
	enc       Encoder
	idleSleep time.Duration
	logger    *slog.Logger
}

func NewPipeline(hub *clients.Hub, enc Encoder, idleSleep time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		hub:       hub,
		enc:       enc,
		idleSleep: idleSleep,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run consumes frames until the channel closes, ctx ends or the hub is
// closed. Per-frame failures are logged and the frame dropped.
func (p *Pipeline) Run(ctx context.Context, frames <-chan capture.RawFrame) error {
	for {
		var frame capture.RawFrame
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok = <-frames:
			if !ok {
				p.logger.Info("frame source closed")
				return nil
			}
		}

		if p.hub.Closed() {
			p.logger.Info("hub closed, stopping pipeline")
			return nil
		}
		if p.hub.Subscribers() == 0 {
			// Hold the capture thread back while nobody watches.
			t := time.NewTimer(p.idleSleep)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			continue
		}

		data, err := p.enc.Encode(frame)
		if err != nil {
			p.logger.Warn("dropping frame", "format", frame.Format.String(), "error", err)
			continue
		}

		n, err := p.hub.Publish(clients.NewFrame(data))
		switch {
		case errors.Is(err, clients.ErrClosed):
			p.logger.Info("hub closed, stopping pipeline")
			return nil
		case err != nil:
			p.logger.Debug("frame not published", "error", err)
		default:
			p.logger.Debug("frame published", "bytes", len(data), "subscribers", n)
		}
	}
}
