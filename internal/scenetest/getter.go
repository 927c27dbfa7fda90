package scenetest

import (
	"context"
	"sync"

	"github.com/eak1mov/go-tileview/compositor"
	"github.com/eak1mov/go-tileview/provider"
	"github.com/eak1mov/go-tileview/raster"
	"github.com/eak1mov/go-tileview/tile"
)

// Getter serves solid 256×256 tiles colored {x, y, z} without any network.
type Getter struct {
	mu      sync.Mutex
	missing map[tile.ID]bool
	panics  bool
	gate    chan struct{}
	entered chan struct{}
	calls   []tile.ID
}

var _ compositor.TileGetter = (*Getter)(nil)

func NewGetter() *Getter {
	return &Getter{missing: make(map[tile.ID]bool)}
}

// Factory returns g for every provider.
func (g *Getter) Factory() func(provider.Provider) compositor.TileGetter {
	return func(provider.Provider) compositor.TileGetter { return g }
}

// SetMissing makes GetTile fail for id with a 404 TileNotFoundError.
func (g *Getter) SetMissing(id tile.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.missing[id] = true
}

// SetPanic makes every following GetTile call panic.
func (g *Getter) SetPanic(panics bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.panics = panics
}

// Block makes GetTile wait until Release is called. The returned channel
// receives a value each time a call starts waiting.
func (g *Getter) Block() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
	g.entered = make(chan struct{}, 1024)
	return g.entered
}

func (g *Getter) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gate != nil {
		close(g.gate)
		g.gate = nil
	}
}

// Calls returns the wrapped IDs requested so far.
func (g *Getter) Calls() []tile.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]tile.ID(nil), g.calls...)
}

func (g *Getter) GetTile(ctx context.Context, z, x, y int) (*raster.Raster, error) {
	g.mu.Lock()
	gate, entered, panics := g.gate, g.entered, g.panics
	g.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if panics {
		panic("scenetest: tile source exploded")
	}

	id, err := tile.Wrap(z, x, y)
	if err != nil {
		return nil, &provider.TileNotFoundError{Z: z, X: x, Y: y, Err: err}
	}

	g.mu.Lock()
	g.calls = append(g.calls, id)
	missing := g.missing[id]
	g.mu.Unlock()

	if missing {
		return nil, &provider.TileNotFoundError{Z: z, X: int(id.X), Y: y, Status: 404}
	}

	img := raster.New(raster.TileSize, raster.TileSize, 4)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = byte(id.X), byte(id.Y), byte(id.Z), 255
	}
	return img, nil
}
