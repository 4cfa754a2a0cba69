package halt

import (
	"fmt"

	"github.com/theoremus-urban-solutions/haltnet/diag"
	"github.com/theoremus-urban-solutions/haltnet/goods"
)

// RouteResult is the router's answer for one packet.
type RouteResult struct {
	NextHop     Handle
	JourneyTime uint32
	// Overcrowded is set when the next hop is overcrowded for the category.
	Overcrowded bool
}

// Reachable reports whether a route exists.
func (r RouteResult) Reachable() bool { return r.JourneyTime != Unreachable }

// FindRoute picks the next hop for a packet waiting at a station.
func (n *Network) FindRoute(from Handle, p Packet) RouteResult {
	if p.Destination == from && n.stations.Bound(from) {
		return RouteResult{NextHop: from}
	}
	cat := p.Type.Category
	path := n.PathTo(from, p.Destination, cat)
	if !path.Reachable() {
		return RouteResult{JourneyTime: Unreachable}
	}
	res := RouteResult{NextHop: path.NextTransfer, JourneyTime: path.JourneyTime}
	if next, ok := n.stations.Get(path.NextTransfer); ok {
		res.Overcrowded = next.IsOvercrowded(cat)
	}
	return res
}

// Deliver hands a packet to a station and returns the amount the station
// took: queued, or consumed at its destination. Zero means discarded.
//
// A packet at its destination is booked as arrived and reported delivered.
// Passengers and mail without a route are counted as no-route and
// discarded. Passengers starting their journey here are happy when routed
// into an uncrowded station and discarded as unhappy otherwise. Freight
// without a route waits for the reroute cycle.
func (n *Network) Deliver(at Handle, p Packet) uint32 {
	s, ok := n.stations.Get(at)
	if !ok || p.Amount == 0 {
		return 0
	}
	cat := p.Type.Category
	if !s.flags.Accepts(cat) {
		return 0
	}
	fresh := p.Origin == at || p.Origin.IsZero()
	if p.Origin.IsZero() {
		p.Origin = at
	}
	if !fresh {
		s.book(int64(p.Amount), CostArrived)
	}
	if p.Destination == at {
		n.report(at, p, OutcomeDelivered)
		return p.Amount
	}

	res := n.FindRoute(at, p)
	p.stamp = n.epochs[cat]
	if !res.Reachable() {
		if cat.IsTraveller() {
			s.book(int64(p.Amount), CostNoRoute)
			s.recalcStatus()
			n.report(at, p, OutcomeNoRoute)
			return 0
		}
		p.NextHop = Handle{}
	} else {
		if fresh && cat == goods.CategoryPassengers {
			if s.IsOvercrowded(cat) {
				s.book(int64(p.Amount), CostUnhappy)
				s.recalcStatus()
				n.report(at, p, OutcomeUnhappy)
				return 0
			}
			s.book(int64(p.Amount), CostHappy)
		}
		p.NextHop = res.NextHop
	}
	if fresh || p.Enqueued == 0 {
		p.Enqueued = n.tick
	}
	n.store(s, p)
	return p.Amount
}

func (n *Network) store(s *Station, p Packet) {
	cat := p.Type.Category
	if s.ledger[cat] == nil {
		s.ledger[cat] = newBucket()
	}
	s.ledger[cat].put(p)
	s.recalcOvercrowding()
}

// Retrieve loads up to capacity of one goods type for a vehicle whose
// upcoming stops are given. A packet qualifies when its next hop or its
// destination is one of the stops; nil stops accept any routed packet.
func (n *Network) Retrieve(at Handle, t goods.Type, capacity uint32, stops []Handle) []Packet {
	s, ok := n.stations.Get(at)
	if !ok || capacity == 0 {
		return nil
	}
	b := s.ledger[t.Category]
	if b == nil {
		return nil
	}
	var eligible map[Handle]bool
	if stops != nil {
		eligible = make(map[Handle]bool, len(stops))
		for _, h := range stops {
			eligible[h] = true
		}
	}
	var out []Packet
	var taken uint32
	for i := range b.entries {
		if capacity == 0 {
			break
		}
		e := &b.entries[i]
		if e.Type.ID != t.ID || e.NextHop.IsZero() {
			continue
		}
		if eligible != nil && !eligible[e.NextHop] && !eligible[e.Destination] {
			continue
		}
		amount := min(e.Amount, capacity)
		p := *e
		p.Amount = amount
		out = append(out, p)
		e.Amount -= amount
		capacity -= amount
		taken += amount
	}
	if taken > 0 {
		b.total -= taken
		b.compact()
		s.book(int64(taken), CostDeparted)
		s.recalcOvercrowding()
	}
	return out
}

// Recall removes up to quantity of a goods type from a source, for example
// when a factory closes. A zero source matches every packet.
func (n *Network) Recall(at Handle, t goods.Type, quantity uint32, src Source) uint32 {
	s, ok := n.stations.Get(at)
	if !ok {
		return 0
	}
	b := s.ledger[t.Category]
	if b == nil {
		return 0
	}
	var removed uint32
	for i := range b.entries {
		if removed == quantity {
			break
		}
		e := &b.entries[i]
		if e.Type.ID != t.ID || (src.kind != SourceNone && e.Source != src) {
			continue
		}
		amount := min(e.Amount, quantity-removed)
		e.Amount -= amount
		removed += amount
	}
	if removed > 0 {
		b.total -= removed
		b.compact()
		s.recalcOvercrowding()
	}
	return removed
}

// Reroute rechecks every waiting packet routed under an older epoch or
// whose next hop or destination disappeared. Unroutable passengers and
// mail are discarded; unroutable freight keeps waiting until the drop
// policy gives up on it.
func (n *Network) Reroute(at Handle) {
	s, ok := n.stations.Get(at)
	if !ok {
		return
	}
	changed := false
	for c, b := range s.ledger {
		if b.len() == 0 {
			continue
		}
		cat := goods.Category(c)
		fresh := newBucket()
		for _, e := range b.entries {
			if e.stamp == n.epochs[cat] && !e.NextHop.IsZero() &&
				n.stations.Bound(e.NextHop) && n.stations.Bound(e.Destination) {
				fresh.put(e)
				continue
			}
			changed = true
			res := n.FindRoute(at, e)
			e.stamp = n.epochs[cat]
			switch {
			case res.Reachable():
				e.NextHop = res.NextHop
				e.Retries = 0
				fresh.put(e)
			case cat.IsTraveller():
				s.book(int64(e.Amount), CostNoRoute)
				n.report(at, e, OutcomeNoRoute)
			default:
				e.NextHop = Handle{}
				e.Retries++
				if n.shouldDrop(e) {
					n.diag.Add(diag.FreightDropped, fmt.Sprintf("%d %s at %s", e.Amount, e.Type.Name, s.name))
					n.report(at, e, OutcomeDropped)
					continue
				}
				fresh.put(e)
			}
		}
		s.ledger[c] = fresh
	}
	if changed {
		s.recalcOvercrowding()
	}
}

func (n *Network) shouldDrop(p Packet) bool {
	if !n.stations.Bound(p.Destination) {
		return true
	}
	if limit := n.policy.FreightMaxRetries; limit > 0 && int(p.Retries) >= limit {
		return true
	}
	if limit := n.policy.FreightMaxWaitTicks; limit > 0 && n.tick-p.Enqueued > uint64(limit) {
		return true
	}
	return false
}

// WaitingPackets returns a copy of the packets waiting in one category,
// in ledger order.
func (n *Network) WaitingPackets(at Handle, cat goods.Category) []Packet {
	s, ok := n.stations.Get(at)
	if !ok || s.ledger[cat] == nil {
		return nil
	}
	return append([]Packet(nil), s.ledger[cat].entries...)
}

func (n *Network) report(at Handle, p Packet, o Outcome) {
	if n.reporter != nil {
		n.reporter.Report(at, p, o)
	}
}
