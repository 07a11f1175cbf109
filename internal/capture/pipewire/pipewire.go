//go:build linux && cgo

// Package pipewire captures a portal screencast node with libpipewire.
package pipewire

/*
#cgo pkg-config: libpipewire-0.3
#include <stdlib.h>
#include <spa/param/video/raw.h>
#include "capture.h"
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/cgo"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"weblinuxremote/internal/capture"
)

// OpenFunc opens the PipeWire remote for a session.
type OpenFunc func(ctx context.Context) (*os.File, error)

// Source is a capture.Backend reading one PipeWire node.
type Source struct {
	open   OpenFunc
	node   uint32
	logger *slog.Logger
}

// New returns a source for node, reached through the remote returned by open.
func New(open OpenFunc, node uint32, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{open: open, node: node, logger: logger.With("component", "pipewire", "node_id", node)}
}

var spaFormats = map[capture.PixelFormat]C.uint32_t{
	capture.FormatRGB:  C.SPA_VIDEO_FORMAT_RGB,
	capture.FormatRGBA: C.SPA_VIDEO_FORMAT_RGBA,
	capture.FormatRGBx: C.SPA_VIDEO_FORMAT_RGBx,
	capture.FormatBGRx: C.SPA_VIDEO_FORMAT_BGRx,
	capture.FormatBGRA: C.SPA_VIDEO_FORMAT_BGRA,
	capture.FormatBGR:  C.SPA_VIDEO_FORMAT_BGR,
	capture.FormatYUY2: C.SPA_VIDEO_FORMAT_YUY2,
	capture.FormatI420: C.SPA_VIDEO_FORMAT_I420,
}

func pixelFormat(spa C.uint32_t) capture.PixelFormat {
	for p, v := range spaFormats {
		if v == spa {
			return p
		}
	}
	return capture.FormatUnknown
}

// Connect opens the remote and connects a stream to the node.
func (s *Source) Connect(ctx context.Context, params capture.Params, h capture.Handler) (capture.Stream, error) {
	if len(params.Formats) == 0 {
		return nil, errors.New("no pixel formats to offer")
	}
	formats := make([]C.uint32_t, 0, len(params.Formats))
	for _, f := range params.Formats {
		v, ok := spaFormats[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", capture.ErrUnsupportedFormat, f)
		}
		formats = append(formats, v)
	}

	remote, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open pipewire remote: %w", err)
	}
	defer remote.Close()
	// PipeWire takes ownership of its own copy of the socket.
	fd, err := unix.FcntlInt(remote.Fd(), unix.F_DUPFD_CLOEXEC, 3)
	if err != nil {
		return nil, fmt.Errorf("duplicating pipewire fd: %w", err)
	}

	st := &stream{handler: h, logger: s.logger}
	st.handle = cgo.NewHandle(st)

	cparams := (*C.wlr_capture_params)(C.malloc(C.size_t(unsafe.Sizeof(C.wlr_capture_params{}))))
	defer C.free(unsafe.Pointer(cparams))
	cformats := (*C.uint32_t)(C.malloc(C.size_t(len(formats)) * C.size_t(unsafe.Sizeof(C.uint32_t(0)))))
	defer C.free(unsafe.Pointer(cformats))
	copy(unsafe.Slice(cformats, len(formats)), formats)

	*cparams = C.wlr_capture_params{
		formats:        cformats,
		n_formats:      C.int(len(formats)),
		default_width:  C.uint32_t(params.DefaultSize.Width),
		default_height: C.uint32_t(params.DefaultSize.Height),
		max_width:      C.uint32_t(params.MaxSize.Width),
		max_height:     C.uint32_t(params.MaxSize.Height),
		default_rate:   C.uint32_t(params.DefaultFramerate.Num),
		max_rate:       C.uint32_t(params.MaxFramerate.Num),
	}

	var cerr *C.char
	c := C.wlr_capture_new(C.int(fd), C.uint32_t(s.node), C.uintptr_t(st.handle), cparams, &cerr)
	if c == nil {
		st.handle.Delete()
		return nil, fmt.Errorf("pipewire: %s", C.GoString(cerr))
	}
	st.c = c
	return st, nil
}

type stream struct {
	c       *C.wlr_capture
	handle  cgo.Handle
	handler capture.Handler
	logger  *slog.Logger
	format  capture.Format
}

func (s *stream) Run() error {
	if rc := C.wlr_capture_run(s.c); rc < 0 {
		return fmt.Errorf("pipewire main loop: %w", syscall.Errno(-rc))
	}
	return nil
}

func (s *stream) Stop() {
	C.wlr_capture_stop(s.c)
}

func (s *stream) Close() error {
	C.wlr_capture_destroy(s.c)
	s.handle.Delete()
	return nil
}

//export goCaptureFormat
func goCaptureFormat(h C.uintptr_t, format, width, height, num, denom C.uint32_t) {
	s := cgo.Handle(h).Value().(*stream)
	s.format = capture.Format{
		Pixel:     pixelFormat(format),
		Size:      capture.Size{Width: uint32(width), Height: uint32(height)},
		Framerate: capture.Fraction{Num: uint32(num), Denom: uint32(denom)},
	}
	s.handler.OnFormat(s.format)
}

//export goCaptureFrame
func goCaptureFrame(h C.uintptr_t, data *unsafe.Pointer, sizes *C.uint32_t, strides *C.int32_t, n C.int) C.int {
	s := cgo.Handle(h).Value().(*stream)
	ptrs := unsafe.Slice(data, int(n))
	lens := unsafe.Slice(sizes, int(n))
	steps := unsafe.Slice(strides, int(n))
	planes := make([]capture.Plane, n)
	for i := range planes {
		planes[i] = capture.Plane{Data: C.GoBytes(ptrs[i], C.int(lens[i])), Stride: int(steps[i])}
	}

	frame := capture.RawFrame{
		Format: s.format.Pixel,
		Width:  int(s.format.Size.Width),
		Height: int(s.format.Size.Height),
	}
	var err error
	frame.Data, frame.Stride, err = capture.PackPlanes(frame.Format, frame.Width, frame.Height, planes)
	if err != nil {
		s.logger.Warn("dropping frame", "error", err)
		return 1
	}
	if frame.Stride <= 0 {
		frame.Stride = frame.Width * frame.Format.BytesPerPixel()
	}
	if s.handler.OnFrame(frame) {
		return 1
	}
	return 0
}

//export goCaptureDequeueFailed
func goCaptureDequeueFailed(h C.uintptr_t, code C.int) {
	s := cgo.Handle(h).Value().(*stream)
	s.logger.Debug("no buffer to dequeue", "error", syscall.Errno(code))
}
