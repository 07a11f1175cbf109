//go:build !(linux && cgo)

package pipewire

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"weblinuxremote/internal/capture"
)

var errUnavailable = errors.New("pipewire capture needs linux and cgo")

type OpenFunc func(ctx context.Context) (*os.File, error)

type Source struct{}

func New(OpenFunc, uint32, *slog.Logger) *Source { return &Source{} }

func (*Source) Connect(context.Context, capture.Params, capture.Handler) (capture.Stream, error) {
	return nil, errUnavailable
}
