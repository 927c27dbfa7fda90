// Package compositor fetches a rectangle of tiles concurrently and stitches them
// into one raster with the bottom-left origin.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/eak1mov/go-tileview/provider"
	"github.com/eak1mov/go-tileview/raster"
	"github.com/eak1mov/go-tileview/tile"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of tiles fetched at once by Merge.
const DefaultConcurrency = 10

var (
	ErrInvalidRange     = errors.New("tileview: invalid tile range")
	ErrTileSize         = errors.New("tileview: tile size mismatch")
	ErrUnknownOnMissing = errors.New("tileview: unknown missing-tile policy")
)

// OnMissing selects what happens to a tile the provider could not deliver.
type OnMissing int

const (
	// Raise propagates the provider's TileNotFoundError.
	Raise OnMissing = iota
	// Ignore leaves a fully transparent tile-sized gap.
	Ignore
	// ReplaceWithFallback substitutes raster.Fallback.
	ReplaceWithFallback
)

func (m OnMissing) String() string {
	switch m {
	case Raise:
		return "raise"
	case Ignore:
		return "ignore"
	case ReplaceWithFallback:
		return "fallback"
	default:
		return fmt.Sprintf("OnMissing(%d)", int(m))
	}
}

// ParseOnMissing accepts "raise", "ignore" and "fallback".
func ParseOnMissing(s string) (OnMissing, error) {
	switch strings.ToLower(s) {
	case "raise":
		return Raise, nil
	case "ignore":
		return Ignore, nil
	case "fallback", "replace_with_fallback":
		return ReplaceWithFallback, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOnMissing, s)
}

// TileGetter returns decoded tiles with the bottom-left origin.
// provider.Source is the usual implementation.
type TileGetter interface {
	GetTile(ctx context.Context, z, x, y int) (*raster.Raster, error)
}

type Compositor struct {
	getter      TileGetter
	concurrency int
	logger      *slog.Logger
}

type config struct {
	Concurrency int
	Logger      *slog.Logger
}

type Option func(*config)

// WithConcurrency bounds parallel fetches within one Merge.
func WithConcurrency(n int) Option {
	return func(c *config) { c.Concurrency = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func New(getter TileGetter, opts ...Option) *Compositor {
	config := config{
		Concurrency: DefaultConcurrency,
		Logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &Compositor{getter: getter, concurrency: config.Concurrency, logger: config.Logger}
}

// GetTile fetches one tile and applies the missing-tile policy.
// The policy only covers provider.ErrTileNotFound. A cancelled context and
// coordinates outside the world (tile.ErrInvalidTile) are returned whatever
// the policy, as is any other error.
func (c *Compositor) GetTile(ctx context.Context, z, x, y int, missing OnMissing) (*raster.Raster, error) {
	img, notFound, err := c.fetch(ctx, z, x, y, missing)
	if err != nil {
		return nil, err
	}
	if notFound != nil {
		return c.placeholder(raster.TileSize, missing, z, x, y, notFound), nil
	}
	return img, nil
}

// fetch returns either a tile, a not-found error the policy may replace, or
// an error to give up with.
func (c *Compositor) fetch(ctx context.Context, z, x, y int, missing OnMissing) (img *raster.Raster, notFound, err error) {
	img, err = c.getter.GetTile(ctx, z, x, y)
	if err == nil {
		return img, nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if missing == Raise || !errors.Is(err, provider.ErrTileNotFound) || errors.Is(err, tile.ErrInvalidTile) {
		return nil, nil, err
	}
	return nil, err, nil
}

func (c *Compositor) placeholder(size int, missing OnMissing, z, x, y int, err error) *raster.Raster {
	if missing == Ignore {
		c.logger.Debug("tileview: ignoring missing tile", "z", z, "x", x, "y", y, "error", err)
		return raster.New(size, size, 4)
	}
	c.logger.Warn("tileview: replacing missing tile with fallback", "z", z, "x", x, "y", y, "error", err)
	return raster.FallbackSize(size)
}

// Merge fetches every tile of r and stitches them into one RGBA raster of
// (r.Cols()×tileSize) by (r.Rows()×tileSize) pixels.
//
// Columns go west to east. Row 0 of the result is the southern edge, so the
// tile at y == r.YMax is placed first in each column. x is wrapped per tile,
// which lets r straddle the antimeridian.
func (c *Compositor) Merge(ctx context.Context, r tile.Range, missing OnMissing) (*raster.Raster, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, r)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cells := make([]tile.Cell, 0, r.Cols()*r.Rows())
	for _, cell := range r.Cells() {
		cells = append(cells, cell)
	}
	tiles := make([]*raster.Raster, len(cells))
	notFound := make([]error, len(cells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, cell := range cells {
		g.Go(func() error {
			img, nf, err := c.fetch(gctx, r.Z, cell.X, cell.Y, missing)
			if err != nil {
				return err
			}
			tiles[i], notFound[i] = img, nf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// placeholders take the size of the tiles the provider did serve
	size := raster.TileSize
	if i := slices.IndexFunc(tiles, func(img *raster.Raster) bool { return img != nil }); i >= 0 {
		size = tiles[i].Width
	}
	for i, cell := range cells {
		if tiles[i] == nil {
			tiles[i] = c.placeholder(size, missing, r.Z, cell.X, cell.Y, notFound[i])
		}
	}

	out := raster.New(size*r.Cols(), size*r.Rows(), 4)
	for i, cell := range cells {
		img := tiles[i]
		if img.Width != size || img.Height != size {
			return nil, fmt.Errorf("%w: tile z=%d x=%d y=%d is %dx%d, expected %dx%d",
				ErrTileSize, r.Z, cell.X, cell.Y, img.Width, img.Height, size, size)
		}
		if err := out.Paste(img.ToRGBA(), cell.Col*size, cell.Row*size); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("tileview: merged tiles", "range", r.String(), "width", out.Width, "height", out.Height)
	return out, nil
}
