// Package tile provides tile identifiers and tile-index rectangles for the XYZ scheme.
package tile

import (
	"errors"
	"fmt"
)

// MaxZoom is the highest zoom level representable by ID.
const MaxZoom = 30

var ErrInvalidTile = errors.New("tileview: invalid tile")

// ID represents tile coordinates in the XYZ scheme (Tiled web map).
// X is always wrapped into [0, 2^Z), Y is never wrapped.
type ID struct {
	X uint32
	Y uint32
	Z uint32
}

func (t ID) Valid() bool {
	return t.Z <= MaxZoom && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// WrapX returns x modulo 2^z, always non-negative.
func WrapX(z, x int) int {
	n := 1 << z
	r := x % n
	if r < 0 {
		r += n
	}
	return r
}

// Wrap builds an ID from possibly out-of-world tile coordinates.
// The x coordinate wraps around the antimeridian, y outside [0, 2^z-1] is an error.
func Wrap(z, x, y int) (ID, error) {
	if z < 0 || z > MaxZoom {
		return ID{}, fmt.Errorf("%w: zoom %d outside [0, %d]", ErrInvalidTile, z, MaxZoom)
	}
	if y < 0 || y >= 1<<z {
		return ID{}, fmt.Errorf("%w: y=%d outside [0, %d] at zoom %d", ErrInvalidTile, y, (1<<z)-1, z)
	}
	return ID{X: uint32(WrapX(z, x)), Y: uint32(y), Z: uint32(z)}, nil
}

// Range identifies a rectangle of tiles at one zoom level, bounds inclusive.
// X bounds are kept unwrapped so that a rectangle may straddle the antimeridian.
// It is comparable and used as the key of a composited image.
type Range struct {
	Z    int
	XMin int
	XMax int
	YMin int
	YMax int
}

func (r Range) Cols() int { return r.XMax - r.XMin + 1 }
func (r Range) Rows() int { return r.YMax - r.YMin + 1 }

func (r Range) Valid() bool {
	return r.Z >= 0 && r.Z <= MaxZoom &&
		r.XMin <= r.XMax && r.YMin <= r.YMax &&
		r.YMin >= 0 && r.YMax < 1<<r.Z
}

func (r Range) String() string {
	return fmt.Sprintf("z=%d x=[%d,%d] y=[%d,%d]", r.Z, r.XMin, r.XMax, r.YMin, r.YMax)
}

// Single returns the one-tile range covering (z, x, y).
func Single(z, x, y int) Range {
	return Range{Z: z, XMin: x, XMax: x, YMin: y, YMax: y}
}

// Reader defines an interface for reading raw tile data.
type Reader interface {
	// ReadTile reads a single tile.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(tileID ID) ([]byte, error)
}
