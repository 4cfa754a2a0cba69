package halt

import (
	"image"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/handle"
)

// Handle references a Station.
type Handle = handle.Handle[Station]

// Flags are the goods classes a station accepts.
type Flags uint8

const (
	EnablePassengers Flags = 1 << iota
	EnableMail
	EnableFreight

	EnableAll = EnablePassengers | EnableMail | EnableFreight
)

// Accepts reports whether the flags enable the category's class.
func (f Flags) Accepts(c goods.Category) bool {
	switch c.Class() {
	case goods.ClassPassengers:
		return f&EnablePassengers != 0
	case goods.ClassMail:
		return f&EnableMail != 0
	}
	return f&EnableFreight != 0
}

// History kinds kept per month.
const (
	CostArrived = iota
	CostDeparted
	CostWaiting
	CostHappy
	CostUnhappy
	CostNoRoute
	CostConvoysArrived
	NumCostKinds
)

// MaxMonths is the length of the monthly history ring.
const MaxMonths = 12

// Status summarises a station for colouring in views.
type Status uint8

const (
	StatusInactive Status = iota
	StatusOK
	StatusBusy
	StatusCrowded
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBusy:
		return "busy"
	case StatusCrowded:
		return "crowded"
	}
	return "inactive"
}

const waitSamples = 16

// waitRing keeps the last 16 observed waiting times towards one target.
type waitRing struct {
	values [waitSamples]uint16
	n      int
	next   int
}

func (w *waitRing) add(v uint16) {
	w.values[w.next] = v
	w.next = (w.next + 1) % waitSamples
	if w.n < waitSamples {
		w.n++
	}
}

// samples returns the kept values, oldest first.
func (w *waitRing) samples() []uint16 {
	if w.n < waitSamples {
		return append([]uint16(nil), w.values[:w.n]...)
	}
	return append(append([]uint16(nil), w.values[w.next:]...), w.values[:w.next]...)
}

func (w *waitRing) average() uint32 {
	if w.n == 0 {
		return 0
	}
	var sum uint32
	for i := 0; i < w.n; i++ {
		sum += uint32(w.values[i])
	}
	return sum / uint32(w.n)
}

// Station is a stop served by lines and convoys.
type Station struct {
	self     Handle
	name     string
	pos      image.Point
	flags    Flags
	capacity [goods.NumClasses]uint32

	overcrowded uint16 // bit per category
	status      Status

	connexions [goods.MaxCategories]*ConnexionTable
	reschedule [goods.MaxCategories]bool
	paths      [goods.MaxCategories]*pathCache
	ledger     [goods.MaxCategories]*bucket
	waits      [goods.MaxCategories]map[Handle]*waitRing

	lines   []LineHandle
	convoys []ConvoyHandle

	history [MaxMonths][NumCostKinds]int64
}

func newStation(name string, pos image.Point, flags Flags) *Station {
	s := &Station{name: name, pos: pos, flags: flags}
	for c := range s.reschedule {
		s.reschedule[c] = true
	}
	return s
}

func (s *Station) Handle() Handle { return s.self }
func (s *Station) Name() string { return s.name }
func (s *Station) Pos() image.Point { return s.pos }
func (s *Station) Flags() Flags { return s.flags }
func (s *Station) Status() Status { return s.status }
func (s *Station) Lines() []LineHandle { return append([]LineHandle(nil), s.lines...) }
func (s *Station) Accepts(c goods.Category) bool { return s.flags.Accepts(c) }

// SetFlags changes which classes the station accepts. Connexions towards
// this station change, so the caller (Network.SetFlags) bumps epochs.
func (s *Station) setFlags(f Flags) {
	s.flags = f
	s.recalcStatus()
}

// Capacity returns the waiting capacity of a class.
func (s *Station) Capacity(c goods.Class) uint32 { return s.capacity[c] }

// SetCapacity changes the waiting capacity of a class.
func (s *Station) SetCapacity(c goods.Class, v uint32) {
	s.capacity[c] = v
	s.recalcOvercrowding()
}

// IsOvercrowded reports the overcrowding bit of a category.
func (s *Station) IsOvercrowded(c goods.Category) bool {
	return s.overcrowded&(1<<c) != 0
}

// Waiting returns the total waiting amount of a category.
func (s *Station) Waiting(c goods.Category) uint32 {
	if b := s.ledger[c]; b != nil {
		return b.total
	}
	return 0
}

// WaitingClass sums waiting amounts over the categories of a class.
func (s *Station) WaitingClass(cl goods.Class) uint32 {
	var sum uint32
	for c := goods.Category(0); c < goods.MaxCategories; c++ {
		if c.Class() == cl {
			sum += s.Waiting(c)
		}
	}
	return sum
}

// History returns one monthly figure; month 0 is the current month.
func (s *Station) History(month, kind int) int64 {
	if month < 0 || month >= MaxMonths || kind < 0 || kind >= NumCostKinds {
		return 0
	}
	return s.history[month][kind]
}

func (s *Station) Happy() int64 { return s.history[0][CostHappy] }
func (s *Station) Unhappy() int64 { return s.history[0][CostUnhappy] }
func (s *Station) NoRoute() int64 { return s.history[0][CostNoRoute] }

// UnhappyProportion is unhappy/(happy+unhappy) for a month.
func (s *Station) UnhappyProportion(month int) float64 {
	h, u := s.History(month, CostHappy), s.History(month, CostUnhappy)
	if h+u == 0 {
		return 0
	}
	return float64(u) / float64(h+u)
}

// Connexions returns the current table of a category; nil when not built.
func (s *Station) Connexions(c goods.Category) *ConnexionTable { return s.connexions[c] }

// AverageWaitingTime returns the mean of recorded waiting times towards
// target, zero when nothing was recorded.
func (s *Station) AverageWaitingTime(target Handle, c goods.Category) uint32 {
	if m := s.waits[c]; m != nil {
		if w := m[target]; w != nil {
			return w.average()
		}
	}
	return 0
}

func (s *Station) book(amount int64, kind int) {
	s.history[0][kind] += amount
}

func (s *Station) rollMonth() {
	for m := MaxMonths - 1; m > 0; m-- {
		s.history[m] = s.history[m-1]
	}
	s.history[0] = [NumCostKinds]int64{}
	s.history[0][CostWaiting] = int64(s.totalWaiting())
	s.recalcStatus()
}

func (s *Station) totalWaiting() uint32 {
	var sum uint32
	for _, b := range s.ledger {
		if b != nil {
			sum += b.total
		}
	}
	return sum
}

// recalcOvercrowding sets a category's bit while its class waits above capacity.
func (s *Station) recalcOvercrowding() {
	var classWaiting [goods.NumClasses]uint32
	for c := goods.Category(0); c < goods.MaxCategories; c++ {
		classWaiting[c.Class()] += s.Waiting(c)
	}
	var bits uint16
	for c := goods.Category(0); c < goods.MaxCategories; c++ {
		cl := c.Class()
		if classWaiting[cl] > s.capacity[cl] && s.Waiting(c) > 0 {
			bits |= 1 << c
		}
	}
	s.overcrowded = bits
	s.history[0][CostWaiting] = int64(s.totalWaiting())
	s.recalcStatus()
}

func (s *Station) recalcStatus() {
	switch {
	case s.flags == 0:
		s.status = StatusInactive
	case s.overcrowded != 0:
		s.status = StatusCrowded
	case s.history[0][CostUnhappy] > s.history[0][CostHappy]:
		s.status = StatusBusy
	default:
		s.status = StatusOK
	}
}
