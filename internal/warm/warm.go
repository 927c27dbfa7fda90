// Package warm pre-populates a tile cache around a point.
package warm

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/hilbert"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"

	"github.com/eak1mov/go-tileview/mercator"
	"github.com/eak1mov/go-tileview/tile"
)

// Plan lists, for every zoom below maxZoom, the block of about size×size
// tiles centred on (lon, lat), cut at the world edges. Within a zoom the
// tiles follow a Hilbert curve so that neighbours are requested together.
func Plan(lon, lat float64, size, maxZoom int) []tile.ID {
	half := (size + 1) / 2
	lat = min(max(lat, -mercator.MaxLatitude), mercator.MaxLatitude)

	var ids []tile.ID
	for z := range maxZoom {
		center := maptile.At(orb.Point{lon, lat}, maptile.Zoom(z))
		last := (1 << z) - 1
		xMin, xMax := max(0, int(center.X)-half), min(last, int(center.X)+half)
		yMin, yMax := max(0, int(center.Y)-half), min(last, int(center.Y)+half)

		level := make([]tile.ID, 0, (xMax-xMin+1)*(yMax-yMin+1))
		for x := xMin; x <= xMax; x++ {
			for y := yMin; y <= yMax; y++ {
				level = append(level, tile.ID{X: uint32(x), Y: uint32(y), Z: uint32(z)})
			}
		}
		sortHilbert(level, z)
		ids = append(ids, level...)
	}
	return ids
}

func sortHilbert(ids []tile.ID, z int) {
	h, err := hilbert.NewHilbert(1 << z)
	if err != nil {
		return
	}
	code := func(id tile.ID) int {
		d, _ := h.MapInverse(int(id.X), int(id.Y))
		return d
	}
	slices.SortFunc(ids, func(a, b tile.ID) int { return code(a) - code(b) })
}

type Stats struct {
	Fetched int
	Missing int
}

type config struct {
	Concurrency int
	Logger      *slog.Logger
	Progress    func()
}

type Option func(*config)

func WithConcurrency(n int) Option {
	return func(c *config) { c.Concurrency = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithProgress sets a callback invoked once per finished tile.
func WithProgress(progress func()) Option {
	return func(c *config) { c.Progress = progress }
}

// Run reads every tile of ids through reader. An empty tile counts as missing.
// The first read error stops the run.
func Run(ctx context.Context, reader tile.Reader, ids []tile.ID, opts ...Option) (Stats, error) {
	config := config{
		Concurrency: 10,
		Logger:      slog.New(slog.DiscardHandler),
		Progress:    func() {},
	}
	for _, opt := range opts {
		opt(&config)
	}

	var fetched, missing atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Concurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			data, err := reader.ReadTile(id)
			if err != nil {
				return err
			}
			if len(data) == 0 {
				config.Logger.Debug("tile not available", "tile", id.String())
				missing.Add(1)
			} else {
				fetched.Add(1)
			}
			config.Progress()
			return nil
		})
	}
	err := g.Wait()
	return Stats{Fetched: int(fetched.Load()), Missing: int(missing.Load())}, err
}
