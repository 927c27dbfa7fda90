package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eak1mov/go-tileview/cache"
	"github.com/eak1mov/go-tileview/raster"
	"github.com/eak1mov/go-tileview/tile"
	"golang.org/x/sync/singleflight"
)

const DefaultUserAgent = "go-tileview (+https://github.com/eak1mov/go-tileview)"

// StatusError is returned by Fetch for a non-200 response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tileview: GET %s: status %d", e.URL, e.Status)
}

// Client fetches tile bytes over HTTP through an optional response cache.
// Concurrent requests for the same URL share one round trip.
// Only successful responses are cached.
type Client struct {
	http      *http.Client
	store     cache.Store
	userAgent string
	logger    *slog.Logger
	inflight  singleflight.Group
}

type clientConfig struct {
	HTTPClient *http.Client
	Store      cache.Store
	UserAgent  string
	Timeout    time.Duration
	Logger     *slog.Logger
}

type ClientOption func(*clientConfig)

// WithStore sets the response cache. Without one every call hits the network.
func WithStore(store cache.Store) ClientOption {
	return func(c *clientConfig) { c.Store = store }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) { c.HTTPClient = client }
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *clientConfig) { c.UserAgent = userAgent }
}

// WithTimeout bounds a single request; zero means no timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) { c.Timeout = timeout }
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.Logger = logger }
}

func NewClient(opts ...ClientOption) *Client {
	config := clientConfig{
		UserAgent: DefaultUserAgent,
		Logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	} else if config.Timeout != 0 {
		c := *httpClient
		c.Timeout = config.Timeout
		httpClient = &c
	}

	return &Client{
		http:      httpClient,
		store:     config.Store,
		userAgent: config.UserAgent,
		logger:    config.Logger,
	}
}

// Fetch returns the body of a successful GET of url, consulting the cache first.
// A non-200 response yields a *StatusError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := cache.Key(url)
	if c.store != nil {
		data, ok, err := c.store.Get(key)
		if err != nil {
			c.logger.Warn("tileview: cache read failed", "url", url, "error", err)
		} else if ok {
			return data, nil
		}
	}

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		data, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.Put(key, data); err != nil {
				c.logger.Warn("tileview: cache write failed", "url", url, "error", err)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// GetTile fetches tile (z, x, y) of p and returns it as RGBA with the
// bottom-left origin. x wraps around the antimeridian before the URL is built.
//
// Every failure, including transport and decode errors, is reported as a
// *TileNotFoundError, except that a cancelled or expired ctx is returned
// as ctx.Err(). Nothing is retried here.
func (c *Client) GetTile(ctx context.Context, p Provider, z, x, y int) (*raster.Raster, error) {
	id, err := tile.Wrap(z, x, y)
	if err != nil {
		return nil, &TileNotFoundError{Z: z, X: x, Y: y, Err: err}
	}
	x = int(id.X)

	url := p.URL(z, x, y)
	c.logger.Debug("retrieving tile", "url", url)

	data, err := c.Fetch(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		notFound := &TileNotFoundError{Z: z, X: x, Y: y, URL: url, Err: err}
		if statusErr, ok := err.(*StatusError); ok {
			notFound.Status = statusErr.Status
			notFound.Err = nil
		}
		return nil, notFound
	}

	img, alpha, err := raster.Decode(data)
	if err != nil {
		return nil, &TileNotFoundError{Z: z, X: x, Y: y, URL: url, Status: http.StatusOK, Err: err}
	}
	c.logger.Debug("decoded tile", "url", url, "width", img.Width, "height", img.Height, "alpha", alpha)

	img = img.ToRGBA()
	img.FlipVertical()
	return img, nil
}
