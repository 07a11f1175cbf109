// Package stream encodes captured frames to JPEG and publishes them to the
// broadcast hub.
package stream

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"weblinuxremote/internal/capture"
)

const DefaultQuality = 70

// JPEGEncoder encodes raw frames as baseline JPEG.
type JPEGEncoder struct {
	quality int
}

// NewJPEGEncoder returns an encoder. Out of range qualities use
// DefaultQuality.
func NewJPEGEncoder(quality int) *JPEGEncoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEGEncoder{quality: quality}
}

func (e *JPEGEncoder) Encode(f capture.RawFrame) ([]byte, error) {
	img, err := toImage(f)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	buf.Grow(len(f.Data) / 8)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func toImage(f capture.RawFrame) (image.Image, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	switch f.Format {
	case capture.FormatRGB, capture.FormatBGR, capture.FormatRGBA, capture.FormatRGBx,
		capture.FormatBGRx, capture.FormatBGRA:
		return packedToRGBA(f)
	case capture.FormatYUY2:
		return yuy2ToYCbCr(f)
	case capture.FormatI420:
		return i420ToYCbCr(f)
	default:
		return nil, fmt.Errorf("%w: %s", capture.ErrUnsupportedFormat, f.Format)
	}
}

func checkLen(f capture.RawFrame, need int) error {
	if len(f.Data) < need {
		return fmt.Errorf("short %s frame: %d bytes, need %d", f.Format, len(f.Data), need)
	}
	return nil
}

func stride(f capture.RawFrame, minimum int) int {
	if f.Stride < minimum {
		return minimum
	}
	return f.Stride
}

func packedToRGBA(f capture.RawFrame) (*image.RGBA, error) {
	bpp := f.Format.BytesPerPixel()
	rowLen := f.Width * bpp
	st := stride(f, rowLen)
	if err := checkLen(f, st*(f.Height-1)+rowLen); err != nil {
		return nil, err
	}

	r, b := 0, 2
	if f.Format == capture.FormatBGR || f.Format == capture.FormatBGRx || f.Format == capture.FormatBGRA {
		r, b = 2, 0
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Data[y*st : y*st+rowLen]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < f.Width; x++ {
			s, d := src[x*bpp:], dst[x*4:]
			d[0] = s[r]
			d[1] = s[1]
			d[2] = s[b]
			d[3] = 0xff
		}
	}
	return img, nil
}

func yuy2ToYCbCr(f capture.RawFrame) (*image.YCbCr, error) {
	rowLen := ((f.Width + 1) / 2) * 4
	st := stride(f, rowLen)
	if err := checkLen(f, st*(f.Height-1)+rowLen); err != nil {
		return nil, err
	}

	img := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio422)
	for y := 0; y < f.Height; y++ {
		src := f.Data[y*st : y*st+rowLen]
		for x := 0; x < f.Width; x += 2 {
			px := src[x*2 : x*2+4]
			img.Y[y*img.YStride+x] = px[0]
			if x+1 < f.Width {
				img.Y[y*img.YStride+x+1] = px[2]
			}
			ci := y*img.CStride + x/2
			img.Cb[ci] = px[1]
			img.Cr[ci] = px[3]
		}
	}
	return img, nil
}

// i420ToYCbCr reads three contiguous planes: Y, then U and V at half
// resolution in both directions.
func i420ToYCbCr(f capture.RawFrame) (*image.YCbCr, error) {
	ys := stride(f, f.Width)
	cs := (ys + 1) / 2
	cw, ch := (f.Width+1)/2, (f.Height+1)/2
	ySize, cSize := ys*f.Height, cs*ch
	if err := checkLen(f, ySize+2*cSize); err != nil {
		return nil, err
	}

	img := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio420)
	for y := 0; y < f.Height; y++ {
		copy(img.Y[y*img.YStride:y*img.YStride+f.Width], f.Data[y*ys:])
	}
	u, v := f.Data[ySize:ySize+cSize], f.Data[ySize+cSize:]
	for y := 0; y < ch; y++ {
		copy(img.Cb[y*img.CStride:y*img.CStride+cw], u[y*cs:])
		copy(img.Cr[y*img.CStride:y*img.CStride+cw], v[y*cs:])
	}
	return img, nil
}
