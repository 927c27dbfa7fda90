package provider

import (
	"errors"
	"fmt"
	"math/rand/v2"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	ErrUnknownProvider   = errors.New("tileview: unknown tile provider")
	ErrDuplicateProvider = errors.New("tileview: tile provider already registered")
)

// DefaultName is the provider a view starts with when none is configured.
const DefaultName = "StamenTonerInverted"

// Factory builds a fresh provider value, so that views never share one instance.
type Factory func() Provider

// Registry maps provider names to factories, keeping registration order.
type Registry struct {
	factories *orderedmap.OrderedMap[string, Factory]
}

func NewRegistry() *Registry {
	return &Registry{factories: orderedmap.New[string, Factory]()}
}

func (r *Registry) Register(name string, factory Factory) error {
	if _, present := r.factories.Get(name); present {
		return fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
	}
	r.factories.Set(name, factory)
	return nil
}

func (r *Registry) Lookup(name string) (Provider, error) {
	factory, ok := r.factories.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return factory(), nil
}

// Names lists registered providers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.factories.Len())
	for pair := r.factories.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Random picks a registered provider, e.g. to fill a grid of differently styled maps.
func (r *Registry) Random(rng *rand.Rand) (string, Provider) {
	names := r.Names()
	if len(names) == 0 {
		return "", nil
	}
	name := names[rng.IntN(len(names))]
	p, _ := r.Lookup(name)
	return name, p
}

// Builtin returns a registry holding the bundled catalog.
func Builtin() *Registry {
	r := NewRegistry()
	for _, entry := range []struct {
		name    string
		factory Factory
	}{
		{"StamenToner", func() Provider { return Stamen("toner") }},
		{"StamenLite", func() Provider { return Stamen("toner-lite") }},
		{"StamenTerrain", func() Provider { return Stamen("terrain") }},
		{"StamenWatercolor", func() Provider { return Stamen("watercolor") }},
		{DefaultName, func() Provider { return MapStack(FilterChain("toner", "$fff[difference]")) }},
		{"CoolBlue", func() Provider {
			return MapStack(FilterChain("toner-lite", "$fff[difference]", "$000[@40]", "$fff[hsl-saturation@40]",
				"$5999a6[hsl-color]", "buildings[destination-out]") + "[hsl-saturation@90]")
		}},
		{"Wiggity", func() Provider {
			return MapStack(FilterChain("toner-background", "$fff[difference]", "mapbox-water[destination-out]"))
		}},
		{"BigMapOfBlue", func() Provider {
			return MapStack(FilterChain("watercolor", "$fff[difference]", "$81e3f7[hsl-color]"))
		}},
		{"SomeMap", func() Provider {
			return MapStack(FilterChain(
				FilterChain("watercolor", "$fff[hsl-saturation@50]", "$ff5500[hsl-color@30]"),
				FilterChain("naip", "$fff[hsl-saturation@20]", "mapbox-water[destination-out]")+"[overlay]",
			))
		}},
		{"CartodbDark", func() Provider { return Cartodb("dark_all") }},
		{"CartodbLight", func() Provider { return Cartodb("light_all") }},
		{"OpenStreetMap", func() Provider { return OpenStreetMap() }},
		{"EsriWorldImagery", func() Provider { return EsriWorldImagery() }},
	} {
		if err := r.Register(entry.name, entry.factory); err != nil {
			panic(err)
		}
	}
	return r
}
