// Package view keeps a scene filled with map tiles for whatever the camera shows.
//
// A Controller owns one background worker that executes queued commands in
// FIFO order. Every change to the scene graph, whether made by the worker or by
// overlay calls from the UI thread, happens under the controller's scene lock.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eak1mov/go-tileview/compositor"
	"github.com/eak1mov/go-tileview/mercator"
	"github.com/eak1mov/go-tileview/provider"
	"github.com/eak1mov/go-tileview/tile"
)

// State of the command pipeline.
type State int

const (
	Idle State = iota
	CompositeInFlight
)

func (s State) String() string {
	if s == Idle {
		return "Idle"
	}
	return "CompositeInFlight"
}

// GetterFactory builds the tile source used for a provider.
type GetterFactory func(p provider.Provider) compositor.TileGetter

type config struct {
	Logger           *slog.Logger
	Client           *provider.Client
	Getter           GetterFactory
	ZoomCalibration  float64
	TileMargin       int
	Missing          compositor.OnMissing
	FetchConcurrency int
	MinEventInterval time.Duration
	StrictSync       bool
	Now              func() time.Time
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithClient sets the HTTP client used to fetch tiles of every provider.
func WithClient(client *provider.Client) Option {
	return func(c *config) { c.Client = client }
}

// WithTileGetter replaces the HTTP client with a custom tile source.
func WithTileGetter(factory GetterFactory) Option {
	return func(c *config) { c.Getter = factory }
}

func WithZoomCalibration(calibration float64) Option {
	return func(c *config) { c.ZoomCalibration = calibration }
}

// WithTileMargin sets how many extra tiles are loaded around the viewport.
func WithTileMargin(margin int) Option {
	return func(c *config) { c.TileMargin = margin }
}

// WithMissingTiles sets the policy for tiles the provider cannot deliver
// while compositing the viewport.
func WithMissingTiles(missing compositor.OnMissing) Option {
	return func(c *config) { c.Missing = missing }
}

func WithFetchConcurrency(n int) Option {
	return func(c *config) { c.FetchConcurrency = n }
}

// WithMinEventInterval drops camera-driven refreshes closer together than d.
func WithMinEventInterval(d time.Duration) Option {
	return func(c *config) { c.MinEventInterval = d }
}

// WithStrictSync makes a scene/raster divergence fail the command that
// detected it, instead of only being logged.
func WithStrictSync(strict bool) Option {
	return func(c *config) { c.StrictSync = strict }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.Now = now }
}

// source is replaced as a whole whenever the provider changes.
type source struct {
	provider   provider.Provider
	compositor *compositor.Compositor
	gen        uint64
}

type Controller struct {
	scene  Scene
	camera Camera
	config config

	src        atomic.Pointer[source]
	generation atomic.Uint64
	enabled    atomic.Bool
	pending    atomic.Int64

	queue     *commandQueue
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// mu is the scene lock.
	mu          sync.Mutex
	images      map[tile.Range]NodeID
	circles     map[circleKey]NodeID
	probe       probe
	lastTrigger time.Time
}

// New starts the worker and requests tiles for the current viewport from p.
func New(scene Scene, camera Camera, p provider.Provider, opts ...Option) *Controller {
	config := config{
		Logger:           slog.New(slog.DiscardHandler),
		ZoomCalibration:  mercator.ZoomCalibration,
		TileMargin:       1,
		Missing:          compositor.ReplaceWithFallback,
		FetchConcurrency: compositor.DefaultConcurrency,
		Now:              time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Getter == nil {
		client := config.Client
		if client == nil {
			client = provider.NewClient(provider.WithLogger(config.Logger))
		}
		config.Getter = func(p provider.Provider) compositor.TileGetter {
			return provider.Source{Client: client, Provider: p}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		scene:   scene,
		camera:  camera,
		config:  config,
		queue:   newCommandQueue(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		images:  make(map[tile.Range]NodeID),
		circles: make(map[circleKey]NodeID),
	}
	c.enabled.Store(true)

	go c.run()
	c.SetTileProvider(p)
	return c
}

// WithSceneLock runs fn while holding the scene lock. The rendering side uses
// it around camera transform updates.
func (c *Controller) WithSceneLock(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// MercatorScale is the number of Mercator meters per canvas pixel.
func (c *Controller) MercatorScale() float64 {
	rect := c.camera.Rect()
	width, _ := c.camera.CanvasSize()
	return rect.XSpan() / float64(width)
}

func (c *Controller) TileZoomLevel() int {
	return mercator.ZoomForScale(c.MercatorScale(), c.config.ZoomCalibration)
}

// CurrentBounds returns the tile rectangle covering the viewport at the
// current zoom, grown by the tile margin and with y kept inside the world.
func (c *Controller) CurrentBounds() tile.Range {
	rect := c.camera.Rect()
	z := c.TileZoomLevel()

	lon0, lat0 := mercator.MercatorToLonLat(rect.MinX(), mercator.ClampY(rect.MaxY()))
	x0, y0 := mercator.TileForPoint(lon0, lat0, z)

	lon1, lat1 := mercator.MercatorToLonLat(rect.MaxX(), mercator.ClampY(rect.MinY()))
	x1, y1 := mercator.TileForPoint(lon1, lat1, z)

	m := c.config.TileMargin
	return tile.Range{
		Z:    z,
		XMin: x0 - m,
		XMax: x1 + m,
		YMin: max(y0-m, 0),
		YMax: min(y1+m, (1<<z)-1),
	}
}

func (c *Controller) enqueue(cmd command) bool {
	work := fetchesTiles(cmd)
	if work {
		c.pending.Add(1)
	}
	if !c.queue.Push(cmd) {
		if work {
			c.pending.Add(-1)
		}
		return false
	}
	return true
}

// fetchesTiles reports whether cmd counts towards State.
func fetchesTiles(cmd command) bool {
	switch cmd.(type) {
	case compositeViewport, addTile:
		return true
	}
	return false
}

// RequestComposite queues a composite of rng. It never blocks.
func (c *Controller) RequestComposite(rng tile.Range) {
	c.enqueue(compositeViewport{rng: rng, gen: c.src.Load().gen})
}

// AddTilesForCurrentViewport queues a composite of the current viewport.
// It does nothing while the map is disabled.
func (c *Controller) AddTilesForCurrentViewport() {
	if !c.enabled.Load() {
		return
	}
	c.RequestComposite(c.CurrentBounds())
}

// AddTile queues a single tile to be shown as its own image node.
func (c *Controller) AddTile(z, x, y int, missing compositor.OnMissing) {
	c.enqueue(addTile{z: z, x: x, y: y, missing: missing, gen: c.src.Load().gen})
}

// TileProvider returns the provider tiles are currently fetched from.
func (c *Controller) TileProvider() provider.Provider {
	return c.src.Load().provider
}

// SetTileProvider switches providers: every displayed raster is evicted, the
// attribution is updated and the viewport is requested again. Composites still
// running for the previous provider are discarded.
func (c *Controller) SetTileProvider(p provider.Provider) {
	comp := compositor.New(c.config.Getter(p),
		compositor.WithConcurrency(c.config.FetchConcurrency),
		compositor.WithLogger(c.config.Logger))
	c.src.Store(&source{provider: p, compositor: comp, gen: c.generation.Add(1)})

	c.WithSceneLock(func() {
		c.evictLocked(nil)
		c.scene.SetAttribution(p.Attribution(), c.enabled.Load())
	})

	c.AddTilesForCurrentViewport()
}

func (c *Controller) MapEnabled() bool {
	return c.enabled.Load()
}

// SetMapEnabled tears down or rebuilds the tile display. The view itself and
// its overlays are kept.
func (c *Controller) SetMapEnabled(enabled bool) {
	c.enabled.Store(enabled)

	c.WithSceneLock(func() {
		c.scene.SetAttribution(c.src.Load().provider.Attribution(), enabled)
		if !enabled {
			c.evictLocked(nil)
		}
	})

	if enabled {
		c.AddTilesForCurrentViewport()
	}
}

// State is CompositeInFlight from the moment a composite or tile is queued
// until the worker has finished it. Sync and Close do not count.
func (c *Controller) State() State {
	if c.pending.Load() > 0 {
		return CompositeInFlight
	}
	return Idle
}

// QueueLen is the number of commands waiting for the worker.
func (c *Controller) QueueLen() int {
	return c.queue.Len()
}

// Sync waits until every command queued before the call has been executed.
func (c *Controller) Sync(ctx context.Context) error {
	b := barrier{done: make(chan struct{})}
	if !c.enqueue(b) {
		return ErrClosed
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close lets the worker finish the queued commands and stops it.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.queue.PushLast(shutdown{})
		<-c.done
		c.cancel()
	})
	return nil
}

// CheckSync compares the tracked rasters with the image nodes in the scene.
func (c *Controller) CheckSync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkSyncLocked()
}

func (c *Controller) checkSyncLocked() error {
	if n := c.scene.ImageCount(); n != len(c.images) {
		err := &SceneSyncError{Entries: len(c.images), Nodes: n}
		c.config.Logger.Error("tileview: images out of sync with scene", "error", err)
		return err
	}
	return nil
}

// Images returns the keys of the rasters currently displayed.
func (c *Controller) Images() []tile.Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]tile.Range, 0, len(c.images))
	for key := range c.images {
		keys = append(keys, key)
	}
	return keys
}

// evictLocked detaches every displayed raster except keep.
func (c *Controller) evictLocked(keep *tile.Range) {
	for key, node := range c.images {
		if keep != nil && key == *keep {
			continue
		}
		c.scene.Remove(node)
		delete(c.images, key)
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		cmd := c.queue.Pop()
		if _, ok := cmd.(shutdown); ok {
			return
		}
		if err := c.execute(cmd); err != nil {
			c.config.Logger.Error("tileview: worker command failed", "command", cmd.String(), "error", err)
		}
		if fetchesTiles(cmd) {
			c.pending.Add(-1)
		}
	}
}

// execute runs one command. Failures and panics are turned into a *CommandError
// so that the worker keeps going.
func (c *Controller) execute(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CommandError{Command: cmd.String(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch cmd := cmd.(type) {
	case compositeViewport:
		err = c.applyComposite(cmd)
	case addTile:
		err = c.addTile(cmd)
	case barrier:
		close(cmd.done)
	}
	if err != nil {
		return &CommandError{Command: cmd.String(), Err: err}
	}
	return nil
}

func (c *Controller) applyComposite(cmd compositeViewport) error {
	src := c.src.Load()
	if !c.enabled.Load() || src.gen != cmd.gen {
		return nil
	}

	if shown, err := c.reuse(cmd.rng, true); shown {
		return c.syncResult(err)
	}

	img, err := src.compositor.Merge(c.ctx, cmd.rng, c.config.Missing)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled.Load() || c.src.Load().gen != cmd.gen {
		c.config.Logger.Debug("tileview: dropping stale composite", "range", cmd.rng.String())
		return nil
	}
	// the raster origin is bottom-left, so the south-west tile anchors it
	transform := mercator.TileTransform(cmd.rng.Z, cmd.rng.XMin, cmd.rng.YMax)
	c.images[cmd.rng] = c.scene.AddImage(img, Hanning, transform)
	c.evictLocked(&cmd.rng)
	return c.syncResult(c.checkSyncLocked())
}

func (c *Controller) addTile(cmd addTile) error {
	src := c.src.Load()
	if !c.enabled.Load() || src.gen != cmd.gen {
		return nil
	}
	// no missing-tile policy applies outside the world
	if _, err := tile.Wrap(cmd.z, cmd.x, cmd.y); err != nil {
		return err
	}
	key := tile.Single(cmd.z, cmd.x, cmd.y)

	if shown, _ := c.reuse(key, false); shown {
		return nil
	}

	img, err := src.compositor.GetTile(c.ctx, cmd.z, cmd.x, cmd.y, cmd.missing)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled.Load() || c.src.Load().gen != cmd.gen {
		return nil
	}
	if _, present := c.images[key]; present {
		return nil
	}
	c.images[key] = c.scene.AddImage(img, Hanning, mercator.TileTransform(cmd.z, cmd.x, cmd.y))
	return c.syncResult(c.checkSyncLocked())
}

// reuse reports whether rng is already displayed, evicting everything else
// when asked to. A tracked raster whose node has vanished from the scene is
// forgotten so that it gets rebuilt.
func (c *Controller) reuse(rng tile.Range, evictOthers bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, present := c.images[rng]
	if !present {
		return false, nil
	}
	if c.scene.Has(node) {
		if !evictOthers {
			return true, nil
		}
		c.evictLocked(&rng)
		return true, c.checkSyncLocked()
	}
	c.config.Logger.Error("tileview: tracked raster missing from scene", "range", rng.String())
	delete(c.images, rng)
	return false, nil
}

func (c *Controller) syncResult(err error) error {
	if c.config.StrictSync {
		return err
	}
	return nil
}
