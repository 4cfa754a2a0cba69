package halt

import (
	"sort"

	"github.com/theoremus-urban-solutions/haltnet/goods"
)

// Connexion is a direct, transfer-free link to another station.
type Connexion struct {
	JourneyTime uint32
	WaitingTime uint32
	Service     ServiceRef
}

// Cost is the time charged to a search crossing this connexion.
func (c Connexion) Cost() uint32 {
	return satAdd(c.JourneyTime, c.WaitingTime)
}

// ConnexionTable maps each directly reachable station to its best
// connexion. Tables are immutable once published.
type ConnexionTable struct {
	entries map[Handle]Connexion
	order   []Handle
}

func newConnexionTable() *ConnexionTable {
	return &ConnexionTable{entries: make(map[Handle]Connexion)}
}

// offer keeps the connexion with the lower journey time, then the lower
// waiting time; on a full tie the first offer stays.
func (t *ConnexionTable) offer(target Handle, c Connexion) {
	old, ok := t.entries[target]
	if ok && (old.JourneyTime < c.JourneyTime ||
		(old.JourneyTime == c.JourneyTime && old.WaitingTime <= c.WaitingTime)) {
		return
	}
	if !ok {
		t.order = append(t.order, target)
	}
	t.entries[target] = c
}

func (t *ConnexionTable) seal() {
	sort.Slice(t.order, func(i, j int) bool { return t.order[i].Less(t.order[j]) })
}

// Len returns the number of reachable stations.
func (t *ConnexionTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Get returns the connexion to target.
func (t *ConnexionTable) Get(target Handle) (Connexion, bool) {
	if t == nil {
		return Connexion{}, false
	}
	c, ok := t.entries[target]
	return c, ok
}

// Each visits connexions in ascending handle order.
func (t *ConnexionTable) Each(fn func(Handle, Connexion)) {
	if t == nil {
		return
	}
	for _, h := range t.order {
		fn(h, t.entries[h])
	}
}

// buildConnexions computes a fresh table for one station and category. It
// only reads network state, so RebuildAll may call it concurrently.
func (n *Network) buildConnexions(s *Station, cat goods.Category) *ConnexionTable {
	t := newConnexionTable()
	for _, lh := range s.lines {
		if l, ok := n.lines.Get(lh); ok && l.schedule.Categories.Has(cat) {
			n.offerService(t, s, cat, l.schedule, LineService(lh))
		}
	}
	for _, ch := range s.convoys {
		if c, ok := n.convoys.Get(ch); ok && c.schedule.Categories.Has(cat) {
			n.offerService(t, s, cat, c.schedule, ConvoyService(ch))
		}
	}
	t.seal()
	return t
}

// offerService walks the round trip forward from every occurrence of s.
func (n *Network) offerService(t *ConnexionTable, s *Station, cat goods.Category, sched Schedule, ref ServiceRef) {
	seq := sched.expand()
	for i, origin := range seq {
		if origin.halt != s.self {
			continue
		}
		var journey uint32
		for k := 1; k < len(seq); k++ {
			journey = satAdd(journey, seq[(i+k-1)%len(seq)].leg)
			target := seq[(i+k)%len(seq)].halt
			if target == s.self {
				break
			}
			ts, ok := n.stations.Get(target)
			if !ok || !ts.flags.Accepts(cat) {
				continue
			}
			wait := s.AverageWaitingTime(target, cat)
			if wait == 0 {
				wait = origin.wait
			}
			t.offer(target, Connexion{JourneyTime: journey, WaitingTime: wait, Service: ref})
		}
	}
}

// rebuildConnexions swaps in fresh tables for every category the station
// is flagged for.
func (n *Network) rebuildConnexions(s *Station) {
	for c := goods.Category(0); c < goods.MaxCategories; c++ {
		if s.reschedule[c] {
			s.connexions[c] = n.buildConnexions(s, c)
			s.reschedule[c] = false
		}
	}
}

func satAdd(a, b uint32) uint32 {
	if s := a + b; s >= a {
		return s
	}
	return Unreachable
}
