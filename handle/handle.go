package handle

import (
	"errors"
	"fmt"
)

// ErrSlotTaken is returned by InsertAt when the requested slot is live.
var ErrSlotTaken = errors.New("handle: slot already bound")

// Handle references an entity of type T stored in an Arena[T].
// The zero Handle is never bound.
type Handle[T any] struct {
	slot uint32 // 1-based, 0 = unbound
	gen  uint32
}

// ID returns the stable identity of the handle.
func (h Handle[T]) ID() uint64 { return uint64(h.gen)<<32 | uint64(h.slot) }

// IsZero reports whether h was never assigned.
func (h Handle[T]) IsZero() bool { return h.slot == 0 }

// Less orders handles by ID; used wherever iteration must be deterministic.
func (h Handle[T]) Less(o Handle[T]) bool { return h.ID() < o.ID() }

func (h Handle[T]) String() string {
	if h.slot == 0 {
		return "unbound"
	}
	return fmt.Sprintf("%d#%d", h.slot, h.gen)
}

// FromID rebuilds a handle from a persisted ID.
func FromID[T any](id uint64) Handle[T] {
	return Handle[T]{slot: uint32(id), gen: uint32(id >> 32)}
}

type entry[T any] struct {
	gen  uint32
	live bool
	val  *T
}

// Arena owns entities and hands out handles to them.
// It is not safe for concurrent mutation.
type Arena[T any] struct {
	entries []entry[T]
	free    []uint32
	count   int
}

// Insert stores v and returns its handle. Freed slots are reused last-in
// first-out with a bumped generation.
func (a *Arena[T]) Insert(v *T) Handle[T] {
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		e := &a.entries[slot-1]
		e.gen++
		e.live = true
		e.val = v
		a.count++
		return Handle[T]{slot: slot, gen: e.gen}
	}
	a.entries = append(a.entries, entry[T]{gen: 1, live: true, val: v})
	a.count++
	return Handle[T]{slot: uint32(len(a.entries)), gen: 1}
}

// InsertAt stores v under a specific handle, growing the arena as needed.
// It is used when reloading persisted state.
func (a *Arena[T]) InsertAt(h Handle[T], v *T) error {
	if h.slot == 0 {
		return fmt.Errorf("insert at %s: %w", h, ErrSlotTaken)
	}
	for uint32(len(a.entries)) < h.slot {
		a.entries = append(a.entries, entry[T]{})
		a.free = append(a.free, uint32(len(a.entries)))
	}
	e := &a.entries[h.slot-1]
	if e.live {
		return fmt.Errorf("insert at %s: %w", h, ErrSlotTaken)
	}
	for i, s := range a.free {
		if s == h.slot {
			a.free = append(a.free[:i], a.free[i+1:]...)
			break
		}
	}
	e.gen = h.gen
	e.live = true
	e.val = v
	a.count++
	return nil
}

// Get resolves h. ok is false when h is unbound or its entity was removed.
func (a *Arena[T]) Get(h Handle[T]) (*T, bool) {
	if h.slot == 0 || int(h.slot) > len(a.entries) {
		return nil, false
	}
	e := a.entries[h.slot-1]
	if !e.live || e.gen != h.gen {
		return nil, false
	}
	return e.val, true
}

// Bound reports whether h resolves to a live entity.
func (a *Arena[T]) Bound(h Handle[T]) bool {
	_, ok := a.Get(h)
	return ok
}

// Remove unbinds h. It returns false if h was not bound.
func (a *Arena[T]) Remove(h Handle[T]) bool {
	if !a.Bound(h) {
		return false
	}
	e := &a.entries[h.slot-1]
	e.live = false
	e.val = nil
	a.free = append(a.free, h.slot)
	a.count--
	return true
}

// Len returns the number of live entities.
func (a *Arena[T]) Len() int { return a.count }

// Each visits live entities in slot order.
func (a *Arena[T]) Each(fn func(Handle[T], *T)) {
	for i, e := range a.entries {
		if e.live {
			fn(Handle[T]{slot: uint32(i + 1), gen: e.gen}, e.val)
		}
	}
}

// Handles returns the live handles in slot order.
func (a *Arena[T]) Handles() []Handle[T] {
	out := make([]Handle[T], 0, a.count)
	a.Each(func(h Handle[T], _ *T) { out = append(out, h) })
	return out
}
