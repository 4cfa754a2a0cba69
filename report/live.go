package report

import (
	"context"
	"sync"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/sim"
)

// Live shares a world between a simulation loop and readers.
type Live struct {
	mu    sync.Mutex
	world *sim.World
	snap  *Snapshot
}

// NewLive publishes an initial snapshot of w.
func NewLive(w *sim.World) *Live {
	return &Live{world: w, snap: Build(w)}
}

// Run advances the world n ticks and publishes a new snapshot.
func (l *Live) Run(ctx context.Context, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.world.Run(ctx, n)
	l.snap = Build(l.world)
	return err
}

// Do runs fn with exclusive access to the world, for saving or importing.
func (l *Live) Do(fn func(w *sim.World) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := fn(l.world)
	l.snap = Build(l.world)
	return err
}

// Snapshot returns the last published snapshot. Callers must not modify it.
func (l *Live) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Path answers a route query against the current world. Path searches
// resume cached state, so they take the lock like a step.
func (l *Live) Path(from, to string, cat goods.Category) (PathReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Path(l.world.Network(), from, to, cat)
}
