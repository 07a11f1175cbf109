package capture

import (
	"errors"
	"fmt"
	"time"
)

// PixelFormat is the memory layout of a raw frame.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatRGB
	FormatRGBA
	FormatRGBx
	FormatBGRx
	FormatBGRA
	FormatBGR
	FormatYUY2
	FormatI420
)

var formatNames = map[PixelFormat]string{
	FormatUnknown: "unknown",
	FormatRGB:     "RGB",
	FormatRGBA:    "RGBA",
	FormatRGBx:    "RGBx",
	FormatBGRx:    "BGRx",
	FormatBGRA:    "BGRA",
	FormatBGR:     "BGR",
	FormatYUY2:    "YUY2",
	FormatI420:    "I420",
}

func (p PixelFormat) String() string {
	if name, ok := formatNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(p))
}

// BytesPerPixel returns the size of one pixel of a packed format, or 0 for
// planar and unknown formats.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case FormatRGB, FormatBGR:
		return 3
	case FormatRGBA, FormatRGBx, FormatBGRx, FormatBGRA:
		return 4
	case FormatYUY2:
		return 2
	default:
		return 0
	}
}

// Size is a frame size in pixels.
type Size struct {
	Width  uint32
	Height uint32
}

// Fraction is a frame rate in frames per Num/Denom seconds.
type Fraction struct {
	Num   uint32
	Denom uint32
}

// Interval returns the time between frames, or 0 for a variable rate.
func (f Fraction) Interval() time.Duration {
	if f.Num == 0 || f.Denom == 0 {
		return 0
	}
	return time.Duration(f.Denom) * time.Second / time.Duration(f.Num)
}

// Format is the result of format negotiation.
type Format struct {
	Pixel     PixelFormat
	Size      Size
	Framerate Fraction
}

// RawFrame is one captured buffer. Data is owned by the frame and is not
// modified after capture.
type RawFrame struct {
	Format PixelFormat
	Width  int
	Height int
	Stride int
	Data   []byte
}

// Params are the formats a capture source may offer.
type Params struct {
	// Formats in order of preference.
	Formats          []PixelFormat
	DefaultSize      Size
	MaxSize          Size
	DefaultFramerate Fraction
	MaxFramerate     Fraction
}

// DefaultParams returns the negotiation parameters used for screen capture.
func DefaultParams() Params {
	return Params{
		Formats:          []PixelFormat{FormatRGB, FormatRGBA, FormatRGBx, FormatBGRx, FormatYUY2, FormatI420},
		DefaultSize:      Size{Width: 320, Height: 240},
		MaxSize:          Size{Width: 4096, Height: 4096},
		DefaultFramerate: Fraction{Num: 25, Denom: 1},
		MaxFramerate:     Fraction{Num: 1000, Denom: 1},
	}
}

// Plane is one data region of a captured buffer.
type Plane struct {
	Data   []byte
	Stride int
}

// PackPlanes joins the planes of a buffer into the layout RawFrame carries.
// A three-plane I420 buffer becomes the luma rows at the returned stride
// followed by both chroma planes at half that stride. Any other buffer is
// its first plane, unchanged.
func PackPlanes(p PixelFormat, width, height int, planes []Plane) ([]byte, int, error) {
	if len(planes) == 0 {
		return nil, 0, errors.New("buffer has no planes")
	}
	if p != FormatI420 || len(planes) == 1 {
		return planes[0].Data, planes[0].Stride, nil
	}
	if len(planes) < 3 {
		return nil, 0, fmt.Errorf("%s buffer has %d planes, need 3", p, len(planes))
	}

	ys := max(planes[0].Stride, width)
	cs := (ys + 1) / 2
	cw, ch := (width+1)/2, (height+1)/2
	ySize, cSize := ys*height, cs*ch
	out := make([]byte, ySize+2*cSize)
	if err := copyRows(out, ys, planes[0], width, height); err != nil {
		return nil, 0, fmt.Errorf("luma plane: %w", err)
	}
	for i, plane := range planes[1:3] {
		off := ySize + i*cSize
		if err := copyRows(out[off:off+cSize], cs, plane, cw, ch); err != nil {
			return nil, 0, fmt.Errorf("chroma plane %d: %w", i+1, err)
		}
	}
	return out, ys, nil
}

func copyRows(dst []byte, dstStride int, src Plane, width, rows int) error {
	if rows == 0 {
		return nil
	}
	s := max(src.Stride, width)
	if need := s*(rows-1) + width; len(src.Data) < need {
		return fmt.Errorf("short plane: %d bytes, need %d", len(src.Data), need)
	}
	for y := 0; y < rows; y++ {
		copy(dst[y*dstStride:y*dstStride+width], src.Data[y*s:y*s+width])
	}
	return nil
}
