package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTemplate = errors.New("tileview: invalid url template")

// Template is a URL strategy built from a pattern with {z}, {x} and {y}
// placeholders. The order of the placeholders is up to the provider.
//
// Optional placeholders:
//   - {style} is replaced with Style, e.g. a map name or a filter chain.
//   - {s} is replaced with one of Subdomains, picked from the tile position.
type Template struct {
	Pattern    string
	Style      string
	Subdomains []string
	Credit     string
}

// Validate reports a pattern missing one of the required placeholders or using
// {s} without subdomains.
func (t Template) Validate() error {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(t.Pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found in %q", ErrInvalidTemplate, p, t.Pattern)
		}
	}
	if strings.Contains(t.Pattern, "{s}") && len(t.Subdomains) == 0 {
		return fmt.Errorf("%w: {s} used without subdomains in %q", ErrInvalidTemplate, t.Pattern)
	}
	if strings.Contains(t.Pattern, "{style}") && t.Style == "" {
		return fmt.Errorf("%w: {style} used without a style in %q", ErrInvalidTemplate, t.Pattern)
	}
	return nil
}

func (t Template) URL(z, x, y int) string {
	result := t.Pattern
	if len(t.Subdomains) > 0 {
		result = strings.ReplaceAll(result, "{s}", t.Subdomains[(x+y)%len(t.Subdomains)])
	}
	result = strings.ReplaceAll(result, "{style}", t.Style)
	result = strings.ReplaceAll(result, "{x}", strconv.Itoa(x))
	result = strings.ReplaceAll(result, "{y}", strconv.Itoa(y))
	result = strings.ReplaceAll(result, "{z}", strconv.Itoa(z))
	return result
}

func (t Template) Attribution() string {
	return t.Credit
}
