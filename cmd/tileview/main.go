package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eak1mov/go-tileview/config"
)

func main() {
	configPath := flag.String("config", "", "YAML config file, overridden by TILEVIEW_* variables")
	verbose := flag.Bool("v", false, "Log every tile request")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&providersCmd{}, "")
	subcommands.Register(&warmCmd{}, "")
	subcommands.Register(&stitchCmd{}, "")
	subcommands.Register(&versionCmd{}, "")

	flag.Parse()
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(int(subcommands.Execute(context.Background(), cfg)))
}
