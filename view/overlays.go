package view

import (
	"fmt"

	"github.com/eak1mov/go-tileview/mercator"
)

// probe is the marker and label placed by a middle click, in Mercator meters.
type probe struct {
	x, y   float64
	marker NodeID
	label  NodeID
	shown  bool
}

type circleKey struct {
	lon, lat float64
	radius   float64
}

var probeLabelStyle = TextStyle{Color: Red, FontSize: 10}

// MarkerAt draws a marker at (lon, lat) in degrees.
func (c *Controller) MarkerAt(lon, lat float64, style MarkerStyle) NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scene.AddMarkers([]mercator.Point{{lon, lat, 0}}, style, mercator.MercatorProjection{})
}

// RemoveNode detaches an overlay node returned by MarkerAt.
func (c *Controller) RemoveNode(id NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scene.Remove(id)
}

// Circle draws a circle of radius meters around (lon, lat), replacing a circle
// already drawn with the same center and radius.
func (c *Controller) Circle(lon, lat, radius float64, style EllipseStyle) {
	key := circleKey{lon: lon, lat: lat, radius: radius}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.circles[key]; ok {
		c.scene.Remove(old)
	}
	transform := mercator.NewRelativeMercatorProjection(lon, lat)
	c.circles[key] = c.scene.AddEllipse(mercator.Point{0, 0, 0}, radius, style, transform)
}

// RemoveCircle removes the circle drawn by Circle with the same arguments.
func (c *Controller) RemoveCircle(lon, lat, radius float64) error {
	key := circleKey{lon: lon, lat: lat, radius: radius}

	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.circles[key]
	if !ok {
		return fmt.Errorf("%w: (%v, %v) radius %v", ErrNoCircle, lon, lat, radius)
	}
	c.scene.Remove(node)
	delete(c.circles, key)
	return nil
}

// MarkerPos returns the probe marker position in degrees. Before the first
// probe it is (0, 0).
func (c *Controller) MarkerPos() (lon, lat float64) {
	c.mu.Lock()
	x, y := c.probe.x, c.probe.y
	c.mu.Unlock()
	return mercator.MercatorToLonLat(x, mercator.ClampY(y))
}

// CircleAtMarker draws a circle of radius meters around the probe marker.
func (c *Controller) CircleAtMarker(radius float64, style EllipseStyle) {
	lon, lat := c.MarkerPos()
	c.Circle(lon, lat, radius, style)
}

// placeProbeLocked moves the probe to (x, y) meters and labels it with both
// coordinate systems.
func (c *Controller) placeProbeLocked(x, y float64, size float64) {
	c.hideProbeLocked()

	lon, lat := mercator.MercatorToLonLat(x, mercator.ClampY(y))
	text := fmt.Sprintf("(long %f lat %f) (%f, %f)", lon, lat, x, y)
	pos := mercator.Point{x, y, 0}

	c.probe = probe{
		x:      x,
		y:      y,
		marker: c.scene.AddMarkers([]mercator.Point{pos}, MarkerStyle{FaceColor: White, Size: size}, nil),
		label:  c.scene.AddText(text, pos, probeLabelStyle),
		shown:  true,
	}
}

func (c *Controller) hideProbeLocked() {
	if !c.probe.shown {
		return
	}
	c.scene.Remove(c.probe.marker)
	c.scene.Remove(c.probe.label)
	c.probe.shown = false
}
