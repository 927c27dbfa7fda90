// Package scenetest provides in-memory stand-ins for the rendering side of a
// view: a scene graph, a camera and a tile source.
package scenetest

import (
	"sync"

	"github.com/eak1mov/go-tileview/mercator"
	"github.com/eak1mov/go-tileview/raster"
	"github.com/eak1mov/go-tileview/view"
	"github.com/go-spatial/geom"
)

type Kind string

const (
	Image   Kind = "image"
	Markers Kind = "markers"
	Ellipse Kind = "ellipse"
	Text    Kind = "text"
)

// Node records what was attached to the scene.
type Node struct {
	ID        view.NodeID
	Kind      Kind
	Image     *raster.Raster
	Interp    view.Interpolation
	Points    []mercator.Point
	Radius    float64
	Text      string
	Transform mercator.Transform
}

// Scene implements view.Scene.
type Scene struct {
	mu          sync.Mutex
	next        view.NodeID
	nodes       map[view.NodeID]Node
	order       []view.NodeID
	attribution string
	attrVisible bool
}

var _ view.Scene = (*Scene)(nil)

func NewScene() *Scene {
	return &Scene{nodes: make(map[view.NodeID]Node)}
}

func (s *Scene) add(n Node) view.NodeID {
	s.next++
	n.ID = s.next
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	return n.ID
}

func (s *Scene) AddImage(img *raster.Raster, interp view.Interpolation, transform mercator.Transform) view.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(Node{Kind: Image, Image: img, Interp: interp, Transform: transform})
}

func (s *Scene) AddMarkers(points []mercator.Point, _ view.MarkerStyle, transform mercator.Transform) view.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(Node{Kind: Markers, Points: points, Transform: transform})
}

func (s *Scene) AddEllipse(center mercator.Point, radius float64, _ view.EllipseStyle, transform mercator.Transform) view.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(Node{Kind: Ellipse, Points: []mercator.Point{center}, Radius: radius, Transform: transform})
}

func (s *Scene) AddText(text string, pos mercator.Point, _ view.TextStyle) view.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(Node{Kind: Text, Text: text, Points: []mercator.Point{pos}})
}

func (s *Scene) Remove(id view.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
}

func (s *Scene) Has(id view.NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[id]
	return ok
}

func (s *Scene) ImageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(Image)
}

func (s *Scene) SetAttribution(text string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attribution, s.attrVisible = text, visible
}

func (s *Scene) countLocked(kind Kind) int {
	n := 0
	for _, node := range s.nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

// Nodes returns the attached nodes of kind in the order they were added.
func (s *Scene) Nodes(kind Kind) []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Node
	for _, id := range s.order {
		if node, ok := s.nodes[id]; ok && node.Kind == kind {
			out = append(out, node)
		}
	}
	return out
}

func (s *Scene) Count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(kind)
}

// Detach drops a node behind the controller's back.
func (s *Scene) Detach(id view.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
}

func (s *Scene) Attribution() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attribution, s.attrVisible
}

// Camera implements view.Camera with a settable rectangle.
type Camera struct {
	mu     sync.Mutex
	rect   geom.Extent
	width  int
	height int
}

var _ view.Camera = (*Camera)(nil)

func NewCamera(rect geom.Extent, width, height int) *Camera {
	return &Camera{rect: rect, width: width, height: height}
}

// WorldCamera shows the whole Mercator world on a square canvas of size pixels.
func WorldCamera(size int) *Camera {
	b := mercator.BoundsLimit
	return NewCamera(geom.Extent{-b, -b, b, b}, size, size)
}

func (c *Camera) Rect() geom.Extent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rect
}

func (c *Camera) CanvasSize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *Camera) SetRect(rect geom.Extent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rect = rect
}
