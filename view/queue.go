package view

import (
	"fmt"
	"sync"

	"github.com/eak1mov/go-tileview/compositor"
	"github.com/eak1mov/go-tileview/tile"
)

// command is the closed set of work items executed by the worker.
type command interface {
	fmt.Stringer
	command()
}

// compositeViewport stitches rng and swaps it in as the displayed raster.
// gen is the provider generation at enqueue time.
type compositeViewport struct {
	rng tile.Range
	gen uint64
}

// addTile attaches a single tile as its own image node.
type addTile struct {
	z, x, y int
	missing compositor.OnMissing
	gen     uint64
}

// barrier is closed once every command queued before it has run.
type barrier struct {
	done chan struct{}
}

// shutdown stops the worker.
type shutdown struct{}

func (compositeViewport) command() {}
func (addTile) command()           {}
func (barrier) command()           {}
func (shutdown) command()          {}

func (c compositeViewport) String() string {
	return fmt.Sprintf("CompositeViewport{%v gen=%d}", c.rng, c.gen)
}

func (c addTile) String() string {
	return fmt.Sprintf("AddTile{z=%d x=%d y=%d missing=%v gen=%d}", c.z, c.x, c.y, c.missing, c.gen)
}

func (barrier) String() string  { return "Barrier{}" }
func (shutdown) String() string { return "Shutdown{}" }

// commandQueue is an unbounded FIFO. Pop blocks while the queue is empty.
type commandQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []command
	closed bool
}

func newCommandQueue() *commandQueue {
	q := &commandQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends cmd and reports false once the queue has been closed.
func (q *commandQueue) Push(cmd command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, cmd)
	q.cond.Signal()
	return true
}

// PushLast appends cmd and closes the queue to further pushes.
func (q *commandQueue) PushLast(cmd command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, cmd)
	q.closed = true
	q.cond.Signal()
	return true
}

func (q *commandQueue) Pop() command {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	cmd := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return cmd
}

// Len is the number of commands waiting, not counting one being executed.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
