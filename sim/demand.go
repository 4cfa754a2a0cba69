package sim

import (
	"image"

	"github.com/theoremus-urban-solutions/haltnet/city"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
)

// generate turns the city's population into passengers and mail.
// Rates are per 100 citizens per tick; remainders carry over.
func (w *World) generate(c *city.City) {
	d := w.demand[c.ID()]
	pop := c.Population()
	d.passengers += pop * int64(w.cfg.Sim.PassengerRate)
	d.mail += pop * int64(w.cfg.Sim.MailRate)
	if n := d.passengers / 100; n > 0 {
		d.passengers %= 100
		c.AddGeneratedPassengers(n)
		w.travel(c, goods.Passengers, n)
	}
	if n := d.mail / 100; n > 0 {
		d.mail %= 100
		c.AddGeneratedMail(n)
		w.travel(c, goods.Mail, n)
	}
}

// travel sends amount of t from c to a random other city. Travellers
// without a station at either end take the car; a shared station means
// the trip needs no transport.
func (w *World) travel(c *city.City, t goods.Type, amount int64) {
	dest, ok := w.pickDestination(c)
	if !ok {
		return
	}
	from, okFrom := w.nearestStation(c, t.Category)
	to, okTo := w.nearestStation(dest, t.Category)
	switch {
	case !okFrom || !okTo:
		if t.Category == goods.CategoryPassengers {
			w.privateTrip(c, amount)
		}
	case from == to:
		if t.Category == goods.CategoryPassengers {
			c.AddWalkingPassengers(amount)
		} else {
			c.AddTransportedMail(amount)
		}
	default:
		w.network.Deliver(from, halt.Packet{
			Type:        t,
			Amount:      uint32(amount),
			Origin:      from,
			Destination: to,
			Source:      halt.FromCity(c.ID()),
		})
	}
}

// pickDestination draws another city weighted by population.
func (w *World) pickDestination(from *city.City) (*city.City, bool) {
	var total int64
	for _, c := range w.cities {
		if c != from {
			total += max(c.Population(), 1)
		}
	}
	if total == 0 {
		return nil, false
	}
	r := w.rng.Int64N(total)
	for _, c := range w.cities {
		if c == from {
			continue
		}
		r -= max(c.Population(), 1)
		if r < 0 {
			return c, true
		}
	}
	return nil, false
}

// nearestStation finds the station serving c for cat closest to the city
// centre. Ties go to the lower handle.
func (w *World) nearestStation(c *city.City, cat goods.Category) (halt.Handle, bool) {
	area := w.catchment(c)
	var best halt.Handle
	bestDist := -1
	for _, h := range w.network.Stations() {
		s, _ := w.network.Station(h)
		if !s.Accepts(cat) || !s.Pos().In(area) {
			continue
		}
		if d := distance(s.Pos(), c.Pos()); bestDist < 0 || d < bestDist {
			best, bestDist = h, d
		}
	}
	return best, bestDist >= 0
}

func distance(a, b image.Point) int {
	d := a.Sub(b)
	return max(d.X, -d.X) + max(d.Y, -d.Y)
}
