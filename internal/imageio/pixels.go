// Package imageio decodes input slices into pixel buffers.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedFormat = errors.New("imageio: unsupported image format")
	ErrInvalidBuffer     = errors.New("imageio: invalid pixel buffer")
)

// PixelBuffer holds the samples of one frame in row-major order. RGB samples
// are interleaved. Eight-bit samples are stored widened to uint16.
type PixelBuffer struct {
	Width           int
	Height          int
	SamplesPerPixel int
	BitsAllocated   int
	Data            []uint16
}

// Layout describes the buffer geometry, e.g. "4x3 1x16bit".
func (p PixelBuffer) Layout() string {
	return fmt.Sprintf("%dx%d %dx%dbit", p.Width, p.Height, p.SamplesPerPixel, p.BitsAllocated)
}

// Validate checks the buffer is consistent with its declared layout.
func (p PixelBuffer) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidBuffer, p.Width, p.Height)
	}
	if p.SamplesPerPixel != 1 && p.SamplesPerPixel != 3 {
		return fmt.Errorf("%w: %d samples per pixel", ErrInvalidBuffer, p.SamplesPerPixel)
	}
	if p.BitsAllocated != 8 && p.BitsAllocated != 16 {
		return fmt.Errorf("%w: %d bits allocated", ErrInvalidBuffer, p.BitsAllocated)
	}
	if want := p.Width * p.Height * p.SamplesPerPixel; len(p.Data) != want {
		return fmt.Errorf("%w: %d samples, want %d", ErrInvalidBuffer, len(p.Data), want)
	}
	return nil
}

// Monochrome reports whether the buffer holds one sample per pixel.
func (p PixelBuffer) Monochrome() bool { return p.SamplesPerPixel == 1 }

// FromImage converts a decoded image. Gray images keep their depth, anything
// else becomes 8-bit RGB.
func FromImage(img image.Image) PixelBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		buf := newBuffer(w, h, 1, 8)
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x, v := range src.Pix[off : off+w] {
				buf.Data[y*w+x] = uint16(v)
			}
		}
		return buf
	case *image.Gray16:
		buf := newBuffer(w, h, 1, 16)
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < w; x++ {
				buf.Data[y*w+x] = uint16(src.Pix[off+2*x])<<8 | uint16(src.Pix[off+2*x+1])
			}
		}
		return buf
	}

	switch img.ColorModel() {
	case color.GrayModel:
		gray := image.NewGray(image.Rect(0, 0, w, h))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
		return FromImage(gray)
	case color.Gray16Model:
		gray := image.NewGray16(image.Rect(0, 0, w, h))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
		return FromImage(gray)
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	buf := newBuffer(w, h, 3, 8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := rgba.Pix[y*rgba.Stride+4*x:]
			dst := buf.Data[(y*w+x)*3:]
			dst[0], dst[1], dst[2] = uint16(src[0]), uint16(src[1]), uint16(src[2])
		}
	}
	return buf
}

func newBuffer(w, h, spp, bits int) PixelBuffer {
	return PixelBuffer{
		Width:           w,
		Height:          h,
		SamplesPerPixel: spp,
		BitsAllocated:   bits,
		Data:            make([]uint16, w*h*spp),
	}
}
