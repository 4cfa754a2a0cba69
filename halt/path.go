package halt

import (
	"container/heap"
	"math"

	"github.com/theoremus-urban-solutions/haltnet/goods"
)

// Unreachable is the journey time of a destination no route leads to.
const Unreachable uint32 = math.MaxUint32

// Path is the cached answer for one destination.
type Path struct {
	NextTransfer Handle
	JourneyTime  uint32
	prev         Handle
}

// Reachable reports whether the path leads anywhere.
func (p Path) Reachable() bool { return p.JourneyTime != Unreachable }

var unreachablePath = Path{JourneyTime: Unreachable}

type openNode struct {
	halt  Handle
	time  uint32
	first Handle
	prev  Handle
	seq   uint64
}

// openList is a min-heap by (time, insertion sequence).
type openList []openNode

func (o openList) Len() int { return len(o) }
func (o openList) Less(i, j int) bool {
	if o[i].time != o[j].time {
		return o[i].time < o[j].time
	}
	return o[i].seq < o[j].seq
}
func (o openList) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openList) Push(x any) { *o = append(*o, x.(openNode)) }
func (o *openList) Pop() any {
	old := *o
	n := len(old)
	x := old[n-1]
	*o = old[:n-1]
	return x
}

// pathCache holds a search from one origin that can be resumed. Settled
// destinations are final; the open list survives between queries.
type pathCache struct {
	stamp    uint64
	hits     int
	settled  map[Handle]Path
	best     map[Handle]uint32
	open     openList
	seq      uint64
	complete bool
}

func newPathCache(origin Handle, stamp uint64) *pathCache {
	pc := &pathCache{
		stamp:   stamp,
		settled: make(map[Handle]Path),
		best:    map[Handle]uint32{origin: 0},
	}
	heap.Push(&pc.open, openNode{halt: origin, first: origin, prev: origin})
	return pc
}

// Settled returns how many destinations the cache has final answers for.
func (pc *pathCache) Settled() int { return len(pc.settled) }

// cacheFor returns a valid cache for s, discarding a stale one.
func (n *Network) cacheFor(s *Station, cat goods.Category) *pathCache {
	pc := s.paths[cat]
	stale := pc == nil ||
		pc.stamp != n.epochs[cat] ||
		s.reschedule[cat] ||
		(n.routing.MaxCacheHits > 0 && pc.hits >= n.routing.MaxCacheHits)
	if !stale {
		return pc
	}
	n.tablesFor(s, cat)
	pc = newPathCache(s.self, n.epochs[cat])
	s.paths[cat] = pc
	return pc
}

// tablesFor returns the station's connexions, rebuilding them if flagged.
func (n *Network) tablesFor(s *Station, cat goods.Category) *ConnexionTable {
	if s.reschedule[cat] || s.connexions[cat] == nil {
		s.connexions[cat] = n.buildConnexions(s, cat)
		s.reschedule[cat] = false
	}
	return s.connexions[cat]
}

// search settles nodes until goal is settled, the open list runs dry or
// the expansion budget is spent. A zero goal searches the whole network.
func (n *Network) search(origin *Station, cat goods.Category, pc *pathCache, goal Handle) {
	budget := n.routing.MaxExpansions
	for pc.open.Len() > 0 && budget > 0 {
		node := heap.Pop(&pc.open).(openNode)
		if _, done := pc.settled[node.halt]; done {
			continue
		}
		st, ok := n.stations.Get(node.halt)
		if !ok {
			continue
		}
		budget--
		pc.settled[node.halt] = Path{NextTransfer: node.first, JourneyTime: node.time, prev: node.prev}

		n.tablesFor(st, cat).Each(func(target Handle, c Connexion) {
			if _, done := pc.settled[target]; done {
				return
			}
			t := satAdd(node.time, c.Cost())
			if b, ok := pc.best[target]; ok && b <= t {
				return
			}
			pc.best[target] = t
			first := node.first
			if node.halt == origin.self {
				first = target
			}
			pc.seq++
			heap.Push(&pc.open, openNode{halt: target, time: t, first: first, prev: node.halt, seq: pc.seq})
		})
		if node.halt == goal {
			break
		}
	}
	if pc.open.Len() == 0 {
		pc.complete = true
	}
}

// PathTo returns the next transfer and total journey time from one station
// towards goal, searching as far as needed.
func (n *Network) PathTo(from, goal Handle, cat goods.Category) Path {
	s, ok := n.stations.Get(from)
	if !ok || !n.stations.Bound(goal) {
		return unreachablePath
	}
	if from == goal {
		return Path{NextTransfer: goal, prev: goal}
	}
	pc := n.cacheFor(s, cat)
	if p, ok := pc.settled[goal]; ok {
		pc.hits++
		return p
	}
	if pc.complete {
		pc.hits++
		return unreachablePath
	}
	n.search(s, cat, pc, goal)
	if p, ok := pc.settled[goal]; ok {
		return p
	}
	return unreachablePath
}

// CalculatePaths runs one bounded full-network search from a station and
// reports whether every reachable destination is now known.
func (n *Network) CalculatePaths(from Handle, cat goods.Category) bool {
	s, ok := n.stations.Get(from)
	if !ok {
		return false
	}
	pc := n.cacheFor(s, cat)
	if !pc.complete {
		n.search(s, cat, pc, Handle{})
	}
	return pc.complete
}

// WarmPaths runs one bounded full search per station and category with
// connexions, so early queries start from settled answers. It returns how
// many of those searches finished.
func (n *Network) WarmPaths() int {
	done := 0
	for _, h := range n.stations.Handles() {
		s, _ := n.stations.Get(h)
		for c := goods.Category(0); c < goods.MaxCategories; c++ {
			if t := s.connexions[c]; t == nil || t.Len() == 0 {
				continue
			}
			if n.CalculatePaths(h, c) {
				done++
			}
		}
	}
	return done
}

// Route reconstructs the stations visited from one station to goal,
// both ends included. It returns nil when goal is unreachable.
func (n *Network) Route(from, goal Handle, cat goods.Category) []Handle {
	p := n.PathTo(from, goal, cat)
	if !p.Reachable() {
		return nil
	}
	if from == goal {
		return []Handle{from}
	}
	s, _ := n.stations.Get(from)
	pc := s.paths[cat]
	var rev []Handle
	for h := goal; h != from; {
		rev = append(rev, h)
		p, ok := pc.settled[h]
		if !ok {
			return nil
		}
		h = p.prev
	}
	rev = append(rev, from)
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
