// Package provider turns tile indices into fetchable URLs and fetches, decodes
// and orients tiles for display.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/eak1mov/go-tileview/raster"
	"github.com/eak1mov/go-tileview/tile"
)

var ErrTileNotFound = errors.New("tileview: tile not found")

// Provider formats tile URLs and carries the attribution required by the tile server.
// URL receives an x already wrapped into [0, 2^z).
type Provider interface {
	URL(z, x, y int) string
	Attribution() string
}

// TileNotFoundError reports a tile that could not be retrieved or decoded.
// It matches ErrTileNotFound with errors.Is.
type TileNotFoundError struct {
	Z, X, Y int
	URL     string
	Status  int // HTTP status, 0 when no response was received
	Err     error
}

func (e *TileNotFoundError) Error() string {
	msg := fmt.Sprintf("tileview: could not retrieve tile for z=%d, x=%d, y=%d", e.Z, e.X, e.Y)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TileNotFoundError) Is(target error) bool { return target == ErrTileNotFound }

func (e *TileNotFoundError) Unwrap() error { return e.Err }

// Source binds a Provider to the Client that fetches its tiles.
type Source struct {
	Client   *Client
	Provider Provider
}

// GetTile returns the decoded tile with the bottom-left origin.
func (s Source) GetTile(ctx context.Context, z, x, y int) (*raster.Raster, error) {
	return s.Client.GetTile(ctx, s.Provider, z, x, y)
}

// ReadTile returns the raw tile bytes, going through the client's cache.
// A tile the server does not have yields an empty slice with no error.
func (s Source) ReadTile(tileID tile.ID) ([]byte, error) {
	z, x, y := int(tileID.Z), int(tileID.X), int(tileID.Y)
	data, err := s.Client.Fetch(context.Background(), s.Provider.URL(z, x, y))
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return make([]byte, 0), nil
	}
	return data, err
}
