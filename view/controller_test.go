package view_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-spatial/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eak1mov/go-tileview/compositor"
	"github.com/eak1mov/go-tileview/internal/scenetest"
	"github.com/eak1mov/go-tileview/mercator"
	"github.com/eak1mov/go-tileview/provider"
	"github.com/eak1mov/go-tileview/tile"
	"github.com/eak1mov/go-tileview/view"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func debugLogger() (*slog.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type fixture struct {
	c      *view.Controller
	scene  *scenetest.Scene
	camera *scenetest.Camera
	getter *scenetest.Getter
}

func newFixture(t *testing.T, getter *scenetest.Getter, opts ...view.Option) fixture {
	t.Helper()
	if getter == nil {
		getter = scenetest.NewGetter()
	}
	scene := scenetest.NewScene()
	camera := scenetest.WorldCamera(256)
	opts = append([]view.Option{view.WithTileGetter(getter.Factory())}, opts...)
	c := view.New(scene, camera, provider.OpenStreetMap(), opts...)
	t.Cleanup(func() {
		getter.Release()
		require.NoError(t, c.Close())
	})
	return fixture{c: c, scene: scene, camera: camera, getter: getter}
}

func syncView(t *testing.T, c *view.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Sync(ctx))
}

// halfWorld shows the north-west quarter of the world, which is zoom 1 on a
// 256 px canvas.
func halfWorld() geom.Extent {
	b := mercator.BoundsLimit
	return geom.Extent{-b, 0, 0, b}
}

func TestCurrentBounds(t *testing.T) {
	tests := []struct {
		name   string
		rect   geom.Extent
		margin int
		want   tile.Range
	}{
		{
			name:   "world with margin",
			rect:   geom.Extent{-mercator.BoundsLimit, -mercator.BoundsLimit, mercator.BoundsLimit, mercator.BoundsLimit},
			margin: 1,
			want:   tile.Range{Z: 0, XMin: -1, XMax: 1, YMin: 0, YMax: 0},
		},
		{
			name:   "world without margin",
			rect:   geom.Extent{-mercator.BoundsLimit, -mercator.BoundsLimit, mercator.BoundsLimit, mercator.BoundsLimit},
			margin: 0,
			want:   tile.Range{Z: 0, XMin: 0, XMax: 0, YMin: 0, YMax: 0},
		},
		{
			name:   "north-west quarter",
			rect:   halfWorld(),
			margin: 1,
			want:   tile.Range{Z: 1, XMin: -1, XMax: 2, YMin: 0, YMax: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, view.WithTileMargin(tt.margin))
			f.camera.SetRect(tt.rect)
			if diff := cmp.Diff(tt.want, f.c.CurrentBounds()); diff != "" {
				t.Errorf("CurrentBounds() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.want.Z, f.c.TileZoomLevel())
		})
	}
}

func TestMercatorScale(t *testing.T) {
	f := newFixture(t, nil)
	assert.InDelta(t, 2*mercator.BoundsLimit/256, f.c.MercatorScale(), 1e-6)
}

func TestInitialComposite(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)

	want := tile.Range{Z: 0, XMin: -1, XMax: 1, YMin: 0, YMax: 0}
	assert.Equal(t, []tile.Range{want}, f.c.Images())

	nodes := f.scene.Nodes(scenetest.Image)
	require.Len(t, nodes, 1)
	assert.Equal(t, 3*256, nodes[0].Image.Width)
	assert.Equal(t, 256, nodes[0].Image.Height)
	assert.Equal(t, view.Hanning, nodes[0].Interp)
	if diff := cmp.Diff(mercator.TileTransform(0, -1, 0), nodes[0].Transform); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}

	text, visible := f.scene.Attribution()
	assert.Equal(t, provider.OpenStreetMap().Attribution(), text)
	assert.True(t, visible)

	assert.NoError(t, f.c.CheckSync())
	assert.Equal(t, view.Idle, f.c.State())
	assert.Equal(t, 0, f.c.QueueLen())
}

func TestZoomChangeEvictsPreviousComposite(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)

	f.camera.SetRect(halfWorld())
	require.True(t, f.c.HandleCameraEvent(view.MouseEvent{Type: view.MouseWheel}))
	syncView(t, f.c)

	want := tile.Range{Z: 1, XMin: -1, XMax: 2, YMin: 0, YMax: 1}
	assert.Equal(t, []tile.Range{want}, f.c.Images())
	nodes := f.scene.Nodes(scenetest.Image)
	require.Len(t, nodes, 1)
	assert.Equal(t, 4*256, nodes[0].Image.Width)
	assert.Equal(t, 2*256, nodes[0].Image.Height)
	if diff := cmp.Diff(mercator.TileTransform(1, -1, 1), nodes[0].Transform); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, f.c.CheckSync())
}

func TestSameViewportReusesRaster(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)
	before := f.scene.Nodes(scenetest.Image)
	calls := len(f.getter.Calls())

	f.c.AddTilesForCurrentViewport()
	syncView(t, f.c)

	assert.Equal(t, before, f.scene.Nodes(scenetest.Image))
	assert.Len(t, f.getter.Calls(), calls)
}

func TestCameraEventsCoalesce(t *testing.T) {
	getter := scenetest.NewGetter()
	entered := getter.Block()
	f := newFixture(t, getter)

	// the initial composite is now held by the worker
	<-entered
	assert.Equal(t, view.CompositeInFlight, f.c.State())
	assert.Equal(t, 0, f.c.QueueLen())

	wheel := view.MouseEvent{Type: view.MouseWheel}
	assert.True(t, f.c.HandleCameraEvent(wheel))
	assert.Equal(t, 1, f.c.QueueLen())
	assert.False(t, f.c.HandleCameraEvent(wheel))
	assert.Equal(t, 1, f.c.QueueLen())

	assert.True(t, f.c.HandleCameraEvent(view.MouseEvent{Type: view.MouseRelease, Button: view.LeftButton}))
	assert.Equal(t, 2, f.c.QueueLen())

	getter.Release()
	syncView(t, f.c)
	assert.Equal(t, view.Idle, f.c.State())
	assert.Len(t, f.c.Images(), 1)
	assert.NoError(t, f.c.CheckSync())
}

func TestHandleCameraEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   view.MouseEvent
		want bool
	}{
		{"wheel", view.MouseEvent{Type: view.MouseWheel}, true},
		{"release", view.MouseEvent{Type: view.MouseRelease, Button: view.LeftButton}, true},
		{"hover", view.MouseEvent{Type: view.MouseMove}, false},
		{"drag left", view.MouseEvent{Type: view.MouseMove, Buttons: []view.MouseButton{view.LeftButton}}, true},
		{"drag right", view.MouseEvent{Type: view.MouseMove, Buttons: []view.MouseButton{view.RightButton}}, true},
		{"drag middle", view.MouseEvent{Type: view.MouseMove, Buttons: []view.MouseButton{view.MiddleButton}}, false},
		{"drag with shift", view.MouseEvent{Type: view.MouseMove, Buttons: []view.MouseButton{view.LeftButton}, Modifiers: view.Shift}, false},
		{"press", view.MouseEvent{Type: view.MousePress, Button: view.LeftButton}, false},
	}
	f := newFixture(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncView(t, f.c)
			assert.Equal(t, tt.want, f.c.HandleCameraEvent(tt.ev))
		})
	}
}

func TestMinEventInterval(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := newFixture(t, nil,
		view.WithMinEventInterval(time.Second),
		view.WithClock(func() time.Time { return now }))
	syncView(t, f.c)

	wheel := view.MouseEvent{Type: view.MouseWheel}
	assert.True(t, f.c.HandleCameraEvent(wheel))
	syncView(t, f.c)
	assert.False(t, f.c.HandleCameraEvent(wheel))

	now = now.Add(2 * time.Second)
	assert.True(t, f.c.HandleCameraEvent(wheel))
	syncView(t, f.c)

	// the end of a gesture is never throttled
	assert.True(t, f.c.HandleCameraEvent(view.MouseEvent{Type: view.MouseRelease}))
}

func TestSetTileProvider(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)
	first := f.scene.Nodes(scenetest.Image)
	require.Len(t, first, 1)

	dark := provider.Cartodb("dark_all")
	f.c.SetTileProvider(dark)
	assert.False(t, f.scene.Has(first[0].ID))
	syncView(t, f.c)

	assert.Equal(t, dark, f.c.TileProvider())
	text, visible := f.scene.Attribution()
	assert.Equal(t, dark.Attribution(), text)
	assert.True(t, visible)

	nodes := f.scene.Nodes(scenetest.Image)
	require.Len(t, nodes, 1)
	assert.NotEqual(t, first[0].ID, nodes[0].ID)
	assert.NoError(t, f.c.CheckSync())
}

func TestSetTileProviderDropsStaleComposite(t *testing.T) {
	logger, logs := debugLogger()
	getter := scenetest.NewGetter()
	entered := getter.Block()
	f := newFixture(t, getter, view.WithLogger(logger))
	<-entered

	f.c.SetTileProvider(provider.EsriWorldImagery())
	getter.Release()
	syncView(t, f.c)

	assert.Contains(t, logs.String(), "dropping stale composite")
	assert.Equal(t, 1, f.scene.Count(scenetest.Image))
	assert.Len(t, f.c.Images(), 1)
	assert.NoError(t, f.c.CheckSync())
}

func TestSetMapEnabled(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)
	require.Equal(t, 1, f.scene.Count(scenetest.Image))

	f.c.SetMapEnabled(false)
	assert.False(t, f.c.MapEnabled())
	assert.Equal(t, 0, f.scene.Count(scenetest.Image))
	assert.Empty(t, f.c.Images())
	_, visible := f.scene.Attribution()
	assert.False(t, visible)

	assert.False(t, f.c.HandleCameraEvent(view.MouseEvent{Type: view.MouseWheel}))
	f.c.AddTilesForCurrentViewport()
	syncView(t, f.c)
	assert.Equal(t, 0, f.scene.Count(scenetest.Image))

	f.c.SetMapEnabled(true)
	syncView(t, f.c)
	assert.True(t, f.c.MapEnabled())
	assert.Equal(t, 1, f.scene.Count(scenetest.Image))
	_, visible = f.scene.Attribution()
	assert.True(t, visible)
	assert.NoError(t, f.c.CheckSync())
}

func TestAddTile(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)

	f.c.AddTile(0, 0, 0, compositor.Raise)
	f.c.AddTile(0, 0, 0, compositor.Raise)
	syncView(t, f.c)

	assert.ElementsMatch(t, []tile.Range{
		{Z: 0, XMin: -1, XMax: 1, YMin: 0, YMax: 0},
		tile.Single(0, 0, 0),
	}, f.c.Images())

	nodes := f.scene.Nodes(scenetest.Image)
	require.Len(t, nodes, 2)
	assert.Equal(t, 256, nodes[1].Image.Width)
	if diff := cmp.Diff(mercator.TileTransform(0, 0, 0), nodes[1].Transform); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, f.c.CheckSync())
}

func TestWorkerSurvivesFailures(t *testing.T) {
	logger, logs := debugLogger()
	f := newFixture(t, nil, view.WithLogger(logger))
	syncView(t, f.c)

	f.getter.SetMissing(tile.ID{X: 0, Y: 0, Z: 0})
	f.c.AddTile(0, 0, 0, compositor.Raise)
	syncView(t, f.c)
	assert.Contains(t, logs.String(), "worker command failed")
	assert.Contains(t, logs.String(), "AddTile{z=0 x=0 y=0 missing=raise")

	f.getter.SetPanic(true)
	f.c.AddTile(0, 0, 0, compositor.Ignore)
	syncView(t, f.c)
	assert.Contains(t, logs.String(), "tile source exploded")

	f.getter.SetPanic(false)
	f.c.AddTile(0, 0, 0, compositor.Ignore)
	syncView(t, f.c)

	nodes := f.scene.Nodes(scenetest.Image)
	require.Len(t, nodes, 2)
	assert.Equal(t, byte(0), nodes[1].Image.At(10, 10)[3], "ignored tile is transparent")
	assert.NoError(t, f.c.CheckSync())
}

func TestAddTileOutsideWorld(t *testing.T) {
	logger, logs := debugLogger()
	f := newFixture(t, nil, view.WithLogger(logger))
	syncView(t, f.c)
	calls := len(f.getter.Calls())

	f.c.AddTile(2, 0, -1, compositor.ReplaceWithFallback)
	f.c.AddTile(2, 0, 4, compositor.Ignore)
	f.c.AddTile(2, 0, 7, compositor.ReplaceWithFallback)
	syncView(t, f.c)

	assert.Equal(t, []tile.Range{{Z: 0, XMin: -1, XMax: 1, YMin: 0, YMax: 0}}, f.c.Images())
	assert.Len(t, f.scene.Nodes(scenetest.Image), 1)
	assert.Len(t, f.getter.Calls(), calls)
	assert.Equal(t, 3, strings.Count(logs.String(), "worker command failed"))
	assert.Contains(t, logs.String(), tile.ErrInvalidTile.Error())
	assert.NoError(t, f.c.CheckSync())
}

func TestSyncIsNotTileWork(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)
	require.Equal(t, view.Idle, f.c.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 10 {
		_ = f.c.Sync(ctx)
		assert.Equal(t, view.Idle, f.c.State())
	}
	syncView(t, f.c)
	assert.Equal(t, view.Idle, f.c.State())
}

func TestDetachedRasterIsRebuilt(t *testing.T) {
	logger, logs := debugLogger()
	f := newFixture(t, nil, view.WithLogger(logger))
	syncView(t, f.c)

	nodes := f.scene.Nodes(scenetest.Image)
	require.Len(t, nodes, 1)
	f.scene.Detach(nodes[0].ID)

	var syncErr *view.SceneSyncError
	require.ErrorAs(t, f.c.CheckSync(), &syncErr)
	assert.Equal(t, view.SceneSyncError{Entries: 1, Nodes: 0}, *syncErr)

	f.c.AddTilesForCurrentViewport()
	syncView(t, f.c)
	assert.Contains(t, logs.String(), "tracked raster missing from scene")
	assert.Equal(t, 1, f.scene.Count(scenetest.Image))
	assert.NoError(t, f.c.CheckSync())
}

func TestStrictSync(t *testing.T) {
	for _, strict := range []bool{false, true} {
		t.Run(map[bool]string{false: "lenient", true: "strict"}[strict], func(t *testing.T) {
			logger, logs := debugLogger()
			f := newFixture(t, nil, view.WithLogger(logger), view.WithStrictSync(strict))
			syncView(t, f.c)

			f.scene.Detach(f.scene.Nodes(scenetest.Image)[0].ID)
			f.c.AddTile(0, 0, 0, compositor.Raise)
			syncView(t, f.c)

			assert.Contains(t, logs.String(), "images out of sync with scene")
			assert.Equal(t, strict, strings.Contains(logs.String(), "worker command failed"))
		})
	}
}

func TestProbe(t *testing.T) {
	f := newFixture(t, nil)

	lon, lat := f.c.MarkerPos()
	assert.Zero(t, lon)
	assert.Zero(t, lat)

	f.c.HandleMousePress(view.MouseEvent{Type: view.MousePress, Button: view.MiddleButton, Pos: [2]float64{192, 64}})
	lon, lat = f.c.MarkerPos()
	assert.InDelta(t, 90, lon, 1e-9)
	wantLon, wantLat := mercator.MercatorToLonLat(mercator.BoundsLimit/2, mercator.BoundsLimit/2)
	assert.InDelta(t, wantLon, lon, 1e-9)
	assert.InDelta(t, wantLat, lat, 1e-9)

	markers := f.scene.Nodes(scenetest.Markers)
	require.Len(t, markers, 1)
	assert.InDelta(t, mercator.BoundsLimit/2, markers[0].Points[0][0], 1e-6)
	labels := f.scene.Nodes(scenetest.Text)
	require.Len(t, labels, 1)
	assert.Contains(t, labels[0].Text, "(long 90.000000 lat ")

	// a second probe replaces the first
	f.c.HandleMousePress(view.MouseEvent{Type: view.MousePress, Button: view.MiddleButton, Pos: [2]float64{128, 128}})
	assert.Equal(t, 1, f.scene.Count(scenetest.Markers))
	assert.Equal(t, 1, f.scene.Count(scenetest.Text))

	f.c.HandleMousePress(view.MouseEvent{Type: view.MousePress, Button: view.RightButton})
	assert.Equal(t, 0, f.scene.Count(scenetest.Markers))
	assert.Equal(t, 0, f.scene.Count(scenetest.Text))

	// moves are not presses
	f.c.HandleMousePress(view.MouseEvent{Type: view.MouseMove, Button: view.MiddleButton})
	assert.Equal(t, 0, f.scene.Count(scenetest.Markers))
}

func TestCircles(t *testing.T) {
	f := newFixture(t, nil)

	f.c.Circle(10, 20, 1000, view.DefaultCircleStyle)
	f.c.Circle(10, 20, 1000, view.DefaultCircleStyle)
	f.c.Circle(10, 20, 500, view.DefaultCircleStyle)
	ellipses := f.scene.Nodes(scenetest.Ellipse)
	require.Len(t, ellipses, 2)

	rel, ok := ellipses[0].Transform.(*mercator.RelativeMercatorProjection)
	require.True(t, ok)
	assert.Equal(t, 10.0, rel.Longitude())
	assert.Equal(t, 20.0, rel.Latitude())
	assert.Equal(t, mercator.Point{0, 0, 0}, ellipses[0].Points[0])

	require.NoError(t, f.c.RemoveCircle(10, 20, 1000))
	assert.Equal(t, 1, f.scene.Count(scenetest.Ellipse))
	assert.ErrorIs(t, f.c.RemoveCircle(10, 20, 1000), view.ErrNoCircle)

	f.c.HandleMousePress(view.MouseEvent{Type: view.MousePress, Button: view.MiddleButton, Pos: [2]float64{128, 128}})
	f.c.CircleAtMarker(250, view.DefaultCircleStyle)
	assert.Equal(t, 2, f.scene.Count(scenetest.Ellipse))
	lon, lat := f.c.MarkerPos()
	assert.NoError(t, f.c.RemoveCircle(lon, lat, 250))
}

func TestMarkerAt(t *testing.T) {
	f := newFixture(t, nil)

	id := f.c.MarkerAt(24.94, 60.17, view.DefaultMarkerStyle)
	markers := f.scene.Nodes(scenetest.Markers)
	require.Len(t, markers, 1)
	assert.Equal(t, id, markers[0].ID)
	assert.Equal(t, mercator.Point{24.94, 60.17, 0}, markers[0].Points[0])
	assert.Equal(t, mercator.MercatorProjection{}, markers[0].Transform)

	f.c.RemoveNode(id)
	assert.Equal(t, 0, f.scene.Count(scenetest.Markers))
}

func TestWithSceneLockExcludesWorker(t *testing.T) {
	f := newFixture(t, nil)
	syncView(t, f.c)

	f.camera.SetRect(halfWorld())
	before := f.scene.Nodes(scenetest.Image)[0].ID
	f.c.WithSceneLock(func() {
		f.c.AddTilesForCurrentViewport()
		time.Sleep(20 * time.Millisecond)
		// the worker cannot attach while the lock is held
		assert.True(t, f.scene.Has(before))
		assert.Equal(t, 1, f.scene.Count(scenetest.Image))
	})
	syncView(t, f.c)
	assert.False(t, f.scene.Has(before))
	assert.Equal(t, 1, f.scene.Count(scenetest.Image))
}

func TestCloseStopsWorker(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.c.Close())
	require.NoError(t, f.c.Close())

	assert.ErrorIs(t, f.c.Sync(context.Background()), view.ErrClosed)
	f.c.AddTilesForCurrentViewport()
	assert.Equal(t, 0, f.c.QueueLen())
	assert.Equal(t, view.Idle, f.c.State())
}
