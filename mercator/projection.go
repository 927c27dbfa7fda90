package mercator

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var ErrInverseUnsupported = errors.New("tileview: inverse mapping not supported")

// Point is a position passed through a transform. The third component is a
// depth and is never changed by the projections.
type Point [3]float64

// Transform maps node-local coordinates to scene (Mercator meter) coordinates.
//
// Map and Imap are the CPU path. Shader returns the equivalent GLSL evaluated by
// the renderer, and Map32 evaluates the same expression in single precision the
// way the GPU does.
type Transform interface {
	Map(p Point) Point
	Imap(p Point) (Point, error)
	Map32(p [3]float32) [3]float32
	Shader() Shader
}

// Shader holds GLSL sources for a transform and the uniform values they expect.
type Shader struct {
	Map      string
	Imap     string
	Uniforms map[string]float32
}

// MercatorProjection maps (longitude, latitude) in degrees to Mercator meters.
type MercatorProjection struct{}

func (MercatorProjection) Map(p Point) Point {
	x, y := LonLatToMercator(p[0], p[1])
	return Point{x, y, p[2]}
}

func (MercatorProjection) Imap(p Point) (Point, error) {
	lon, lat := MercatorToLonLat(p[0], p[1])
	return Point{lon, lat, p[2]}, nil
}

func (MercatorProjection) Map32(p [3]float32) [3]float32 {
	x, y := lonLatToMercator32(p[0], p[1])
	return [3]float32{x, y, p[2]}
}

func (MercatorProjection) Shader() Shader {
	return Shader{Map: mercatorMapGLSL, Imap: mercatorImapGLSL}
}

// RelativeMercatorProjection treats input coordinates as meter offsets east and
// north of a reference point, e.g. to draw a 10 km circle around a location.
//
// The inverse mapping is not defined: Imap always fails with ErrInverseUnsupported.
type RelativeMercatorProjection struct {
	mu        sync.RWMutex
	longitude float64
	latitude  float64
}

func NewRelativeMercatorProjection(longitude, latitude float64) *RelativeMercatorProjection {
	return &RelativeMercatorProjection{longitude: longitude, latitude: latitude}
}

func (r *RelativeMercatorProjection) Longitude() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.longitude
}

func (r *RelativeMercatorProjection) Latitude() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latitude
}

func (r *RelativeMercatorProjection) SetLongitude(lon float64) {
	r.mu.Lock()
	r.longitude = lon
	r.mu.Unlock()
}

func (r *RelativeMercatorProjection) SetLatitude(lat float64) {
	r.mu.Lock()
	r.latitude = lat
	r.mu.Unlock()
}

func (r *RelativeMercatorProjection) reference() (lon, lat float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.longitude, r.latitude
}

// OffsetLonLat moves (lon, lat) by dx meters east and dy meters north.
// Meters per degree of longitude shrink with cos(lat).
func OffsetLonLat(lon, lat, dx, dy float64) (float64, float64) {
	dLat := dy / EarthRadius
	dLon := dx / (EarthRadius * math.Cos(lat*degToRad))
	return lon + dLon*radToDeg, lat + dLat*radToDeg
}

func (r *RelativeMercatorProjection) Map(p Point) Point {
	lon0, lat0 := r.reference()
	lon, lat := OffsetLonLat(lon0, lat0, p[0], p[1])
	x, y := LonLatToMercator(lon, lat)
	return Point{x, y, p[2]}
}

func (r *RelativeMercatorProjection) Imap(p Point) (Point, error) {
	return p, fmt.Errorf("%w: relative mercator projection", ErrInverseUnsupported)
}

func (r *RelativeMercatorProjection) Map32(p [3]float32) [3]float32 {
	lon0, lat0 := r.reference()
	lonC, latC := float32(lon0), float32(lat0)
	latFin := latC + f32(float64(f32(float64(p[1])/EarthRadius))*radToDeg)
	cosLat := f32(math.Cos(float64(f32(float64(latC) * degToRad))))
	lonOff := f32(float64(f32(float64(p[0])/float64(f32(EarthRadius*float64(cosLat))))) * radToDeg)
	x, y := lonLatToMercator32(lonC+lonOff, latFin)
	return [3]float32{x, y, p[2]}
}

func (r *RelativeMercatorProjection) Shader() Shader {
	lon, lat := r.reference()
	return Shader{
		Map:      relativeMapGLSL,
		Imap:     relativeImapGLSL,
		Uniforms: map[string]float32{"u_lon": float32(lon), "u_lat": float32(lat)},
	}
}

// STTransform scales then translates, per axis.
type STTransform struct {
	Scale     Point
	Translate Point
}

func (t STTransform) Map(p Point) Point {
	var m Point
	for i := range p {
		m[i] = p[i]*t.Scale[i] + t.Translate[i]
	}
	return m
}

func (t STTransform) Imap(p Point) (Point, error) {
	var m Point
	for i := range p {
		if t.Scale[i] == 0 {
			return p, fmt.Errorf("%w: zero scale on axis %d", ErrInverseUnsupported, i)
		}
		m[i] = (p[i] - t.Translate[i]) / t.Scale[i]
	}
	return m, nil
}

func (t STTransform) Map32(p [3]float32) [3]float32 {
	var m [3]float32
	for i := range p {
		m[i] = p[i]*float32(t.Scale[i]) + float32(t.Translate[i])
	}
	return m
}

func (t STTransform) Shader() Shader {
	return Shader{
		Map:  stMapGLSL,
		Imap: stImapGLSL,
		Uniforms: map[string]float32{
			"u_scale_x": float32(t.Scale[0]), "u_scale_y": float32(t.Scale[1]), "u_scale_z": float32(t.Scale[2]),
			"u_translate_x": float32(t.Translate[0]), "u_translate_y": float32(t.Translate[1]), "u_translate_z": float32(t.Translate[2]),
		},
	}
}

func f32(v float64) float32 { return float32(v) }

// lonLatToMercator32 rounds every intermediate to float32, as the shader does.
func lonLatToMercator32(lon, lat float32) (float32, float32) {
	lambda := f32(float64(lon) * degToRad)
	phi := f32(float64(lat) * degToRad)
	x := f32(EarthRadius * float64(lambda))
	t := f32(math.Tan(float64(f32(math.Pi/4 + float64(phi)/2))))
	y := f32(EarthRadius * float64(f32(math.Log(float64(t)))))
	return x, y
}
