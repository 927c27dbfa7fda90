package raster

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TileSize is the edge length in pixels of a standard tile.
const TileSize = 256

const fallbackText = "no tile"

var fallback = sync.OnceValue(func() *Raster {
	img := image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.NRGBA{230, 230, 230, 255}}, image.Point{}, draw.Src)

	border := &image.Uniform{color.NRGBA{150, 150, 150, 255}}
	for _, rect := range []image.Rectangle{
		image.Rect(0, 0, TileSize, 1),
		image.Rect(0, TileSize-1, TileSize, TileSize),
		image.Rect(0, 0, 1, TileSize),
		image.Rect(TileSize-1, 0, TileSize, TileSize),
	} {
		draw.Draw(img, rect, border, image.Point{}, draw.Src)
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{90, 90, 90, 255}),
		Face: face,
	}
	width := d.MeasureString(fallbackText).Round()
	height := face.Metrics().Height.Round()
	d.Dot = fixed.Point26_6{
		X: fixed.I((TileSize - width) / 2),
		Y: fixed.I((TileSize + height) / 2),
	}
	d.DrawString(fallbackText)

	r := FromImage(img, true)
	r.FlipVertical()
	return r
})

// Fallback returns the placeholder shown in place of a tile that could not be
// fetched: a light grey square with a border and a "no tile" label.
// It is TileSize×TileSize RGBA with the bottom-left origin, and every call
// returns a fresh copy.
func Fallback() *Raster {
	return fallback().Clone()
}

// FallbackSize returns the placeholder scaled to size×size, for providers
// serving tiles other than TileSize.
func FallbackSize(size int) *Raster {
	if size == TileSize {
		return Fallback()
	}
	// scaling keeps row order, so the bottom-left origin survives without flips
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), fallback().Image(false), image.Rect(0, 0, TileSize, TileSize), xdraw.Src, nil)
	return FromImage(dst, true)
}
