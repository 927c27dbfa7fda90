package main

import (
	"context"
	"flag"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"github.com/eak1mov/go-tileview/compositor"
	"github.com/eak1mov/go-tileview/config"
	"github.com/eak1mov/go-tileview/mercator"
	"github.com/eak1mov/go-tileview/provider"
	"github.com/eak1mov/go-tileview/tile"
)

type stitchCmd struct {
	lat          float64
	long         float64
	zoom         int
	size         int
	providerName string
	missing      string
	outputPath   string
}

func (c *stitchCmd) Name() string     { return "stitch" }
func (c *stitchCmd) Synopsis() string { return "composite the tiles around a point into a PNG" }
func (c *stitchCmd) Usage() string {
	return "tileview stitch -lat <deg> -long <deg> -z <zoom> -o <path> [-size <n> -provider <name> -missing <raise|ignore|fallback>]\n"
}
func (c *stitchCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.lat, "lat", 0, "Latitude of the center tile")
	f.Float64Var(&c.long, "long", 0, "Longitude of the center tile")
	f.IntVar(&c.zoom, "z", 2, "Zoom level")
	f.IntVar(&c.size, "size", 1, "Tiles added on each side of the center tile")
	f.StringVar(&c.providerName, "provider", "", "Tile provider name (default from config)")
	f.StringVar(&c.missing, "missing", "", "Missing tile policy (default from config)")
	f.StringVar(&c.outputPath, "o", "", "Output PNG path")
}

// stitchRange is the block of tiles within size of the tile holding (lon, lat).
// x may cross the antimeridian, y stops at the poles.
func stitchRange(lon, lat float64, z, size int) tile.Range {
	x, y := mercator.TileForPoint(lon, lat, z)
	return tile.Range{
		Z:    z,
		XMin: x - size,
		XMax: x + size,
		YMin: max(y-size, 0),
		YMax: min(y+size, (1<<z)-1),
	}
}

func (c *stitchCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	cfg := args[0].(*config.Config)
	if c.outputPath == "" {
		log.Println("missing output path")
		return subcommands.ExitUsageError
	}
	if c.providerName != "" {
		cfg.Provider = c.providerName
	}
	if c.missing != "" {
		cfg.MissingTiles = c.missing
	}
	missing, err := cfg.Missing()
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}
	p, err := cfg.LookupProvider(provider.Builtin())
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	store, closeStore, err := openStore(cfg, "", "")
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	source := provider.Source{Client: cfg.NewClient(store, slog.Default()), Provider: p}
	comp := compositor.New(source,
		compositor.WithConcurrency(cfg.FetchConcurrency),
		compositor.WithLogger(slog.Default()))

	rng := stitchRange(c.long, c.lat, c.zoom, c.size)
	img, err := comp.Merge(ctx, rng, missing)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	out, err := os.Create(c.outputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer out.Close()
	if err := png.Encode(out, img.Image(true)); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	log.Printf("wrote %s (%s, %dx%d px)", c.outputPath, rng, img.Width, img.Height)
	return subcommands.ExitSuccess
}
