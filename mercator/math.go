// Package mercator converts between longitude/latitude, Web Mercator meters and
// slippy-map tile indices, and provides the projection transforms attached to
// scene nodes.
package mercator

import (
	"math"

	"github.com/go-spatial/geom"
)

const (
	// EarthRadius in meters, as used by EPSG:3857.
	EarthRadius = 6378137.0

	// BoundsLimit is half of the world extent in meters along either axis.
	BoundsLimit = 20037508.342789244

	// MaxLatitude is the latitude at which the Mercator y reaches BoundsLimit.
	MaxLatitude = 85.0511287798066

	TileSize = 256

	// ZoomCalibration maps meters per pixel to a zoom level so that a 256 px
	// tile is shown crisply half way between two zoom levels.
	// log2(2*BoundsLimit/256) == 17.256199785269995.
	ZoomCalibration = 17.256199785269995 + 0.5

	// MaxZoom is the highest zoom ZoomForScale returns.
	MaxZoom = 30
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// LonLatToMercator projects degrees to Web Mercator meters.
func LonLatToMercator(lon, lat float64) (x, y float64) {
	x = EarthRadius * lon * degToRad
	y = EarthRadius * math.Log(math.Tan(math.Pi/4+lat*degToRad/2))
	return x, y
}

// MercatorToLonLat is the inverse of LonLatToMercator.
func MercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / EarthRadius * radToDeg
	lat = (2*math.Atan(math.Exp(y/EarthRadius)) - math.Pi/2) * radToDeg
	return lon, lat
}

// TileBounds returns the extent of tile (z, x, y) in meters as
// {left, bottom, right, top}. Neither x nor y is wrapped, so tiles just outside
// the world yield extents just outside [-BoundsLimit, BoundsLimit].
func TileBounds(z, x, y int) geom.Extent {
	size := 2 * BoundsLimit / float64(int64(1)<<z)
	left := float64(x)*size - BoundsLimit
	top := BoundsLimit - float64(y)*size
	return geom.Extent{left, top - size, left + size, top}
}

// TileForPoint returns the index of the tile containing (lon, lat) at zoom z.
// Points outside the Mercator world are clamped onto its edge tiles.
func TileForPoint(lon, lat float64, z int) (x, y int) {
	n := 1 << z
	lat = min(max(lat, -MaxLatitude), MaxLatitude)
	latRad := lat * degToRad

	fx := (lon + 180) / 360
	fy := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2

	x = int(math.Floor(fx * float64(n)))
	y = int(math.Floor(fy * float64(n)))
	return min(max(x, 0), n-1), min(max(y, 0), n-1)
}

// ClampY keeps y strictly inside the Mercator bounds so that converting it to a
// latitude stays finite.
func ClampY(y float64) float64 {
	if y >= BoundsLimit {
		return BoundsLimit - 1
	}
	if y <= -BoundsLimit {
		return -BoundsLimit + 1
	}
	return y
}

// ZoomForScale returns floor(-log2(metersPerPixel) + calibration), clamped to [0, MaxZoom].
func ZoomForScale(metersPerPixel, calibration float64) int {
	zoom := -math.Log2(metersPerPixel) + calibration
	if math.IsNaN(zoom) || zoom < 0 {
		return 0
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return int(math.Floor(zoom))
}

// TileTransform returns the scale/translate transform that places a raster of
// TileSize pixels per tile with its bottom-left pixel at the bottom-left corner
// of tile (z, x, y). Higher zoom levels are drawn in front of lower ones.
func TileTransform(z, x, y int) STTransform {
	bounds := TileBounds(z, x, y)
	scale := bounds.XSpan() / TileSize
	return STTransform{
		Scale:     Point{scale, scale, 1},
		Translate: Point{bounds.MinX(), bounds.MinY(), tileDepth - float64(z)},
	}
}

const tileDepth = 9e5
