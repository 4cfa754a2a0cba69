package halt

import (
	"errors"
	"fmt"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/handle"
)

// LineHandle references a Line.
type LineHandle = handle.Handle[Line]

// ConvoyHandle references a Convoy.
type ConvoyHandle = handle.Handle[Convoy]

// ErrInvalidSchedule is returned when legs do not match the stops.
var ErrInvalidSchedule = errors.New("invalid schedule")

// ScheduleEntry is one stop of a schedule. Wait is the expected waiting
// time at the stop in minutes, used until waiting samples exist.
type ScheduleEntry struct {
	Halt Handle
	Wait uint32
}

// Schedule is the ordered stop list a service follows.
//
// For a circular schedule Legs[i] is the travel time from stop i to stop
// i+1, the last leg returning to the first stop. A mirrored schedule runs
// back and forth over the stops and needs only len(Entries)-1 legs.
type Schedule struct {
	Entries    []ScheduleEntry
	Legs       []uint32
	Categories goods.CategorySet
	Mirrored   bool
}

// Validate checks the leg count.
func (s Schedule) Validate() error {
	n := len(s.Entries)
	switch {
	case n < 2:
		return nil
	case s.Mirrored && len(s.Legs) < n-1:
		return fmt.Errorf("%w: mirrored schedule with %d stops has %d legs", ErrInvalidSchedule, n, len(s.Legs))
	case !s.Mirrored && len(s.Legs) != n:
		return fmt.Errorf("%w: circular schedule with %d stops has %d legs", ErrInvalidSchedule, n, len(s.Legs))
	}
	return nil
}

// Stops returns the distinct halts of the schedule in first-visit order.
func (s Schedule) Stops() []Handle {
	seen := make(map[Handle]bool, len(s.Entries))
	out := make([]Handle, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Halt.IsZero() || seen[e.Halt] {
			continue
		}
		seen[e.Halt] = true
		out = append(out, e.Halt)
	}
	return out
}

// Clone returns a deep copy.
func (s Schedule) Clone() Schedule {
	s.Entries = append([]ScheduleEntry(nil), s.Entries...)
	s.Legs = append([]uint32(nil), s.Legs...)
	return s
}

// step is a stop of the expanded round trip with the time to the next one.
type step struct {
	halt Handle
	wait uint32
	leg  uint32
}

// expand flattens the schedule into one full round trip. Mirrored
// schedules become stops followed by the reversed interior stops.
func (s Schedule) expand() []step {
	n := len(s.Entries)
	if n < 2 {
		return nil
	}
	if !s.Mirrored {
		out := make([]step, n)
		for i, e := range s.Entries {
			out[i] = step{halt: e.Halt, wait: e.Wait, leg: s.Legs[i]}
		}
		return out
	}
	out := make([]step, 0, 2*n-2)
	for i := 0; i < n-1; i++ {
		e := s.Entries[i]
		out = append(out, step{halt: e.Halt, wait: e.Wait, leg: s.Legs[i]})
	}
	// turnaround at the last stop, then back over the interior
	for j := n - 1; j >= 1; j-- {
		e := s.Entries[j]
		out = append(out, step{halt: e.Halt, wait: e.Wait, leg: s.Legs[j-1]})
	}
	return out
}

// RoundTrip returns the halts a vehicle visits in one full trip and the
// travel time from each to the next.
func (s Schedule) RoundTrip() ([]Handle, []uint32) {
	steps := s.expand()
	stops := make([]Handle, len(steps))
	legs := make([]uint32, len(steps))
	for i, st := range steps {
		stops[i], legs[i] = st.halt, st.leg
	}
	return stops, legs
}

// ServiceKind tells which kind of service a ServiceRef names.
type ServiceKind uint8

const (
	ServiceNone ServiceKind = iota
	ServiceLine
	ServiceConvoy
)

// ServiceRef is either a line or a convoy.
type ServiceRef struct {
	kind   ServiceKind
	line   LineHandle
	convoy ConvoyHandle
}

func LineService(l LineHandle) ServiceRef { return ServiceRef{kind: ServiceLine, line: l} }
func ConvoyService(c ConvoyHandle) ServiceRef { return ServiceRef{kind: ServiceConvoy, convoy: c} }
func (r ServiceRef) Kind() ServiceKind { return r.kind }
func (r ServiceRef) Line() (LineHandle, bool) { return r.line, r.kind == ServiceLine }
func (r ServiceRef) Convoy() (ConvoyHandle, bool) { return r.convoy, r.kind == ServiceConvoy }

func (r ServiceRef) String() string {
	switch r.kind {
	case ServiceLine:
		return "line " + r.line.String()
	case ServiceConvoy:
		return "convoy " + r.convoy.String()
	}
	return "none"
}

// Line is a named schedule shared by many vehicles.
type Line struct {
	self     LineHandle
	name     string
	schedule Schedule
}

func (l *Line) Handle() LineHandle { return l.self }
func (l *Line) Name() string { return l.name }

// Schedule returns a copy of the line's schedule.
func (l *Line) Schedule() Schedule { return l.schedule.Clone() }

// Convoy is a vehicle running its own schedule without a line.
type Convoy struct {
	self     ConvoyHandle
	schedule Schedule
}

func (c *Convoy) Handle() ConvoyHandle { return c.self }
func (c *Convoy) Schedule() Schedule { return c.schedule.Clone() }
