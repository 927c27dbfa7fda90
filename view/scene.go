package view

import (
	"github.com/eak1mov/go-tileview/mercator"
	"github.com/eak1mov/go-tileview/raster"
	"github.com/go-spatial/geom"
)

// NodeID identifies a node attached to the scene.
type NodeID uint64

// Interpolation names the pixel interpolation used to draw an image node.
type Interpolation string

const (
	Nearest Interpolation = "nearest"
	Hanning Interpolation = "hanning"
)

// Color is RGBA with components in [0, 1].
type Color [4]float32

var (
	White       = Color{1, 1, 1, 1}
	Cyan        = Color{0, 1, 1, 1}
	Red         = Color{1, 0, 0, 1}
	Transparent = Color{1, 1, 1, 0}
)

type MarkerStyle struct {
	FaceColor Color
	Size      float64
}

var DefaultMarkerStyle = MarkerStyle{FaceColor: Cyan, Size: 10}

type EllipseStyle struct {
	BorderColor Color
	FillColor   Color
}

var DefaultCircleStyle = EllipseStyle{BorderColor: White, FillColor: Transparent}

type TextStyle struct {
	Color    Color
	FontSize float64
}

// Scene is the rendering collaborator. The controller calls it only while
// holding its scene lock, so implementations need no locking of their own
// for these calls.
//
// A nil transform means the node is placed directly in scene coordinates
// (Mercator meters).
type Scene interface {
	AddImage(img *raster.Raster, interp Interpolation, transform mercator.Transform) NodeID
	AddMarkers(points []mercator.Point, style MarkerStyle, transform mercator.Transform) NodeID
	AddEllipse(center mercator.Point, radius float64, style EllipseStyle, transform mercator.Transform) NodeID
	AddText(text string, pos mercator.Point, style TextStyle) NodeID

	// Remove detaches a node. Removing an unknown node is a no-op.
	Remove(id NodeID)
	Has(id NodeID) bool

	// ImageCount is the number of image nodes currently attached.
	ImageCount() int

	SetAttribution(text string, visible bool)
}

// Camera reports the visible part of the scene.
type Camera interface {
	// Rect is the visible rectangle in Mercator meters.
	Rect() geom.Extent
	// CanvasSize is the size of the canvas in pixels.
	CanvasSize() (width, height int)
}
