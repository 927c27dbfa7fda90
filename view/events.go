package view

import "slices"

type EventType int

const (
	MouseMove EventType = iota
	MouseWheel
	MousePress
	MouseRelease
)

// MouseButton numbers follow the usual canvas convention.
type MouseButton int

const (
	LeftButton   MouseButton = 1
	RightButton  MouseButton = 2
	MiddleButton MouseButton = 3
)

type Modifiers uint8

const (
	Shift Modifiers = 1 << iota
	Control
	Alt
	Meta
)

// MouseEvent is an input event on the canvas. Pos is in canvas pixels with the
// origin at the top-left corner.
type MouseEvent struct {
	Type      EventType
	Pos       [2]float64
	Button    MouseButton   // button that changed state, for press and release
	Buttons   []MouseButton // buttons held down
	Modifiers Modifiers
}

// ProbeMarkerSize is the size of the marker placed by a middle click.
const ProbeMarkerSize = 10

// HandleCameraEvent is called after the camera has applied a pan or zoom event.
// It queues a composite of the new viewport and reports whether it did.
//
// Wheel events always refresh. Moves refresh only while dragging with the left
// or right button and no modifier. While commands are still queued the event
// is dropped, so a long drag does not build a backlog; the release that ends it
// always refreshes.
func (c *Controller) HandleCameraEvent(ev MouseEvent) bool {
	if !c.enabled.Load() {
		return false
	}
	if ev.Type == MouseRelease {
		c.AddTilesForCurrentViewport()
		return true
	}
	if c.queue.Len() > 0 {
		return false
	}

	needsUpdate := false
	switch ev.Type {
	case MouseWheel:
		needsUpdate = true
	case MouseMove:
		dragging := slices.Contains(ev.Buttons, LeftButton) || slices.Contains(ev.Buttons, RightButton)
		needsUpdate = dragging && ev.Modifiers == 0
	}
	if !needsUpdate {
		return false
	}

	if interval := c.config.MinEventInterval; interval > 0 {
		now := c.config.Now()
		c.mu.Lock()
		tooSoon := now.Sub(c.lastTrigger) < interval
		if !tooSoon {
			c.lastTrigger = now
		}
		c.mu.Unlock()
		if tooSoon {
			return false
		}
	}

	c.AddTilesForCurrentViewport()
	return true
}

// HandleMousePress places the probe on a middle click and hides it on a right click.
func (c *Controller) HandleMousePress(ev MouseEvent) {
	if ev.Type != MousePress {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Button {
	case RightButton:
		c.hideProbeLocked()
	case MiddleButton:
		rect := c.camera.Rect()
		width, height := c.camera.CanvasSize()
		fx := ev.Pos[0] / float64(width)
		fy := ev.Pos[1] / float64(height)
		x := rect.MinX() + fx*(rect.MaxX()-rect.MinX())
		y := rect.MaxY() + fy*(rect.MinY()-rect.MaxY())
		c.placeProbeLocked(x, y, ProbeMarkerSize)
	}
}
