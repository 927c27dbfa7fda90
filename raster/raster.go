// Package raster holds decoded tile pixels as a plain H×W×C byte array,
// the form handed to the rendering collaborator.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var (
	ErrDecode           = errors.New("tileview: cannot decode tile image")
	ErrChannelsMismatch = errors.New("tileview: raster channel count mismatch")
	ErrOutOfBounds      = errors.New("tileview: raster paste out of bounds")
)

// Raster is a row-major pixel array with 3 (RGB) or 4 (RGBA) bytes per pixel.
//
// Row 0 is whatever row the producer put first: Decode keeps the source order
// (top row first) and FlipVertical turns it into the bottom-left origin expected
// by the scene.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// New allocates a zeroed raster. With 4 channels that is fully transparent.
func New(width, height, channels int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

func (r *Raster) stride() int { return r.Width * r.Channels }

// Row returns the bytes of row y.
func (r *Raster) Row(y int) []byte {
	s := r.stride()
	return r.Pix[y*s : (y+1)*s]
}

// At returns the channels of pixel (x, y). The slice aliases Pix.
func (r *Raster) At(x, y int) []byte {
	i := y*r.stride() + x*r.Channels
	return r.Pix[i : i+r.Channels]
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	c := *r
	c.Pix = bytes.Clone(r.Pix)
	return &c
}

// FlipVertical reverses the row order in place.
func (r *Raster) FlipVertical() {
	s := r.stride()
	tmp := make([]byte, s)
	for top, bottom := 0, r.Height-1; top < bottom; top, bottom = top+1, bottom-1 {
		copy(tmp, r.Row(top))
		copy(r.Row(top), r.Row(bottom))
		copy(r.Row(bottom), tmp)
	}
}

// ToRGBA returns a 4-channel version of r. A 4-channel raster is returned as is.
func (r *Raster) ToRGBA() *Raster {
	if r.Channels == 4 {
		return r
	}
	out := New(r.Width, r.Height, 4)
	for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
		copy(out.Pix[j:j+3], r.Pix[i:i+3])
		out.Pix[j+3] = 0xff
	}
	return out
}

// Paste copies src into r with the src pixel (0, 0) landing on (x, y).
func (r *Raster) Paste(src *Raster, x, y int) error {
	if src.Channels != r.Channels {
		return fmt.Errorf("%w: %d into %d", ErrChannelsMismatch, src.Channels, r.Channels)
	}
	if x < 0 || y < 0 || x+src.Width > r.Width || y+src.Height > r.Height {
		return fmt.Errorf("%w: %dx%d at (%d, %d) into %dx%d", ErrOutOfBounds, src.Width, src.Height, x, y, r.Width, r.Height)
	}
	off := x * r.Channels
	for row := range src.Height {
		copy(r.Row(y + row)[off:], src.Row(row))
	}
	return nil
}

// Image converts r into an image with row 0 at the top, as image encoders expect.
// Pass bottomLeft when r uses the scene's bottom-left origin.
func (r *Raster) Image(bottomLeft bool) *image.NRGBA {
	rgba := r.ToRGBA()
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := range r.Height {
		src := y
		if bottomLeft {
			src = r.Height - 1 - y
		}
		copy(img.Pix[y*img.Stride:], rgba.Row(src))
	}
	return img
}

// FromImage copies img into a raster, top row first.
// The result has 4 channels when withAlpha is set and 3 otherwise.
func FromImage(img image.Image, withAlpha bool) *Raster {
	b := img.Bounds()
	channels := 3
	if withAlpha {
		channels = 4
	}
	r := New(b.Dx(), b.Dy(), channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			px := r.At(x-b.Min.X, y-b.Min.Y)
			px[0], px[1], px[2] = c.R, c.G, c.B
			if withAlpha {
				px[3] = c.A
			}
		}
	}
	return r
}

// Decode decodes PNG, JPEG or WebP bytes. It reports whether the source carried
// an alpha channel; the returned raster has 4 channels exactly when it did.
func Decode(data []byte) (*Raster, bool, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, false, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}
	alpha := hasAlpha(img)
	return FromImage(img, alpha), alpha, nil
}

// hasAlpha follows the concrete types the registered decoders produce:
// truecolor PNG without alpha decodes to *image.RGBA, with alpha to *image.NRGBA.
func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.NYCbCrA, *image.Alpha, *image.Alpha16:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	default:
		return false
	}
}
