package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/eak1mov/go-tileview/provider"
)

type providersCmd struct {
	width int
	urls  bool
}

func (c *providersCmd) Name() string     { return "providers" }
func (c *providersCmd) Synopsis() string { return "list bundled tile providers" }
func (c *providersCmd) Usage() string {
	return "tileview providers [-w <width>] [-urls]\n"
}
func (c *providersCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.width, "w", 72, "Wrap attribution text at this width")
	f.BoolVar(&c.urls, "urls", false, "Show the URL of tile 0/0/0")
}

func (c *providersCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	registry := provider.Builtin()
	for _, name := range registry.Names() {
		p, _ := registry.Lookup(name)
		marker := " "
		if name == provider.DefaultName {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
		if c.urls {
			fmt.Println(indent.String(p.URL(0, 0, 0), 4))
		}
		attribution := wordwrap.String(p.Attribution(), max(c.width-4, 20))
		fmt.Println(strings.TrimRight(indent.String(attribution, 4), "\n"))
	}
	return subcommands.ExitSuccess
}
