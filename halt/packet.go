package halt

import (
	"fmt"

	"github.com/theoremus-urban-solutions/haltnet/goods"
)

// SourceKind tells what generated a packet.
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceCity
	SourceFactory
)

// Source is the city or factory a packet was generated by.
type Source struct {
	kind SourceKind
	id   uint64
}

// FromCity tags a packet as generated by the city with id.
func FromCity(id uint64) Source { return Source{kind: SourceCity, id: id} }

// FromFactory tags a packet as generated by the factory with id.
func FromFactory(id uint64) Source { return Source{kind: SourceFactory, id: id} }

// RestoreSource rebuilds a persisted source tag.
func RestoreSource(kind SourceKind, id uint64) Source {
	if kind > SourceFactory {
		return Source{}
	}
	if kind == SourceNone {
		id = 0
	}
	return Source{kind: kind, id: id}
}

func (s Source) Kind() SourceKind { return s.kind }
func (s Source) ID() uint64 { return s.id }

// City returns the originating city id.
func (s Source) City() (uint64, bool) { return s.id, s.kind == SourceCity }

// Factory returns the originating factory id.
func (s Source) Factory() (uint64, bool) { return s.id, s.kind == SourceFactory }

func (s Source) String() string {
	switch s.kind {
	case SourceCity:
		return fmt.Sprintf("city %d", s.id)
	case SourceFactory:
		return fmt.Sprintf("factory %d", s.id)
	}
	return "none"
}

// Packet is a quantity of one goods type travelling to one destination.
type Packet struct {
	Type        goods.Type
	Amount      uint32
	Origin      Handle
	Destination Handle
	NextHop     Handle
	Source      Source

	// Enqueued is the network tick the packet started waiting.
	Enqueued uint64
	// Retries counts reroute cycles that found no route.
	Retries uint32

	stamp uint64
}

type ledgerKey struct {
	typ  uint16
	dest Handle
}

func (p *Packet) key() ledgerKey { return ledgerKey{typ: p.Type.ID, dest: p.Destination} }

// bucket holds the waiting packets of one category. At most one packet per
// (type, destination) key exists.
type bucket struct {
	entries []Packet
	index   map[ledgerKey]int
	total   uint32
}

func newBucket() *bucket {
	return &bucket{index: make(map[ledgerKey]int)}
}

// put merges p into the entry with its key or appends it.
func (b *bucket) put(p Packet) {
	if i, ok := b.index[p.key()]; ok {
		e := &b.entries[i]
		e.Amount += p.Amount
		e.NextHop = p.NextHop
		e.stamp = p.stamp
		if p.Enqueued < e.Enqueued {
			e.Enqueued = p.Enqueued
		}
		b.total += p.Amount
		return
	}
	b.index[p.key()] = len(b.entries)
	b.entries = append(b.entries, p)
	b.total += p.Amount
}

// compact drops empty entries and reindexes.
func (b *bucket) compact() {
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.Amount > 0 {
			kept = append(kept, e)
		}
	}
	clear(b.entries[len(kept):])
	b.entries = kept
	clear(b.index)
	for i := range b.entries {
		b.index[b.entries[i].key()] = i
	}
}

func (b *bucket) len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Outcome is what happened to a packet the ledger gave up on or finished.
type Outcome uint8

const (
	OutcomeDelivered Outcome = iota
	OutcomeNoRoute
	OutcomeUnhappy
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeNoRoute:
		return "no_route"
	case OutcomeUnhappy:
		return "unhappy"
	}
	return "dropped"
}

// Reporter receives ledger outcomes, typically to credit the source city.
type Reporter interface {
	Report(at Handle, p Packet, o Outcome)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(at Handle, p Packet, o Outcome)

func (f ReporterFunc) Report(at Handle, p Packet, o Outcome) { f(at, p, o) }
