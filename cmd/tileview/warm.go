package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"

	"github.com/eak1mov/go-tileview/config"
	"github.com/eak1mov/go-tileview/internal/warm"
	"github.com/eak1mov/go-tileview/provider"
)

type warmCmd struct {
	lat          float64
	long         float64
	size         int
	maxZoom      int
	providerName string
	cacheBackend string
	cachePath    string
}

func (c *warmCmd) Name() string     { return "warm" }
func (c *warmCmd) Synopsis() string { return "populate the tile cache around a point" }
func (c *warmCmd) Usage() string {
	return "tileview warm -lat <deg> -long <deg> [-size <n> -max-zoom <z> -provider <name> -cache <path> -backend <fs|sqlite|memory>]\n"
}
func (c *warmCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.lat, "lat", 0, "Latitude at which to center the collection")
	f.Float64Var(&c.long, "long", 0, "Longitude at which to center the collection")
	f.IntVar(&c.size, "size", 30, "Number of tiles to grab in each direction at each zoom level")
	f.IntVar(&c.maxZoom, "max-zoom", 16, "Zoom levels below this one are fetched")
	f.StringVar(&c.providerName, "provider", "", "Tile provider name (default from config)")
	f.StringVar(&c.cachePath, "cache", "", "Cache location (default from config)")
	f.StringVar(&c.cacheBackend, "backend", "", "Cache backend, deduced from -cache when empty")
}

func (c *warmCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	cfg := args[0].(*config.Config)
	if c.providerName != "" {
		cfg.Provider = c.providerName
	}
	p, err := cfg.LookupProvider(provider.Builtin())
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	store, closeStore, err := openStore(cfg, c.cacheBackend, c.cachePath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer closeStore()
	source := provider.Source{Client: cfg.NewClient(store, slog.Default()), Provider: p}

	ids := warm.Plan(c.long, c.lat, c.size, c.maxZoom)
	bar := progressbar.NewOptions(len(ids), progressbar.OptionShowIts(), progressbar.OptionShowCount())
	stats, err := warm.Run(ctx, source, ids,
		warm.WithConcurrency(cfg.FetchConcurrency),
		warm.WithLogger(slog.Default()),
		warm.WithProgress(func() { bar.Add(1) }),
	)
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%d tiles cached, %d not available\n", stats.Fetched, stats.Missing)
	return subcommands.ExitSuccess
}
