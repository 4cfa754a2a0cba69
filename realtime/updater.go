package realtime

import (
	"cmp"
	"fmt"
	"log"
	"slices"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/theoremus-urban-solutions/haltnet/diag"
	"github.com/theoremus-urban-solutions/haltnet/gtfs"
	"github.com/theoremus-urban-solutions/haltnet/halt"
)

// Stats summarizes one applied feed message.
type Stats struct {
	Timestamp uint64
	Trips     int
	Skipped   int
	Lines     int
}

// Updater rewrites line legs from trip updates.
type Updater struct {
	network *halt.Network
	binding *gtfs.Binding
	diag    *diag.Aggregator
}

func NewUpdater(n *halt.Network, b *gtfs.Binding, d *diag.Aggregator) *Updater {
	return &Updater{network: n, binding: b, diag: d}
}

// legSamples accumulates adjusted leg times of one line.
type legSamples struct {
	sum   []int64
	count []int64
}

// ApplyBytes decodes and applies a feed message.
func (u *Updater) ApplyBytes(b []byte) (Stats, error) {
	fm, err := Decode(b)
	if err != nil {
		return Stats{}, err
	}
	return u.Apply(fm)
}

// Apply updates the legs of every line with at least one matched trip.
// Lines without updates keep their current schedule.
func (u *Updater) Apply(fm *gtfsrtpb.FeedMessage) (Stats, error) {
	var st Stats
	st.Timestamp = fm.GetHeader().GetTimestamp()
	samples := map[halt.LineHandle]*legSamples{}

	for _, e := range fm.GetEntity() {
		tu := e.GetTripUpdate()
		if tu == nil || tu.GetTrip() == nil {
			continue
		}
		if tu.GetTrip().GetScheduleRelationship() == gtfsrtpb.TripDescriptor_CANCELED {
			st.Skipped++
			continue
		}
		id := tu.GetTrip().GetTripId()
		tb, ok := u.binding.Trips[id]
		if !ok {
			u.diag.Add(diag.FeedTripUnknown, id)
			st.Skipped++
			continue
		}
		base := u.binding.Legs[tb.Line]
		if len(base) != len(tb.Stops)-1 {
			st.Skipped++
			continue
		}
		delays, ok := u.delays(id, tb, tu)
		if !ok {
			st.Skipped++
			continue
		}
		s := samples[tb.Line]
		if s == nil {
			s = &legSamples{sum: make([]int64, len(base)), count: make([]int64, len(base))}
			samples[tb.Line] = s
		}
		for j := range len(delays) - 1 {
			leg := j
			if tb.Reversed {
				leg = len(base) - 1 - j
			}
			adj := int64(base[leg]) + roundDiv(delays[j+1]-delays[j], 60)
			s.sum[leg] += max(adj, int64(u.binding.MinLeg))
			s.count[leg]++
		}
		st.Trips++
	}

	lines := make([]halt.LineHandle, 0, len(samples))
	for lh := range samples {
		lines = append(lines, lh)
	}
	slices.SortFunc(lines, func(a, b halt.LineHandle) int { return cmp.Compare(a.ID(), b.ID()) })
	for _, lh := range lines {
		changed, err := u.applyLine(lh, samples[lh])
		if err != nil {
			return st, err
		}
		if changed {
			st.Lines++
		}
	}
	log.Printf("Applied %d trip updates (%d skipped), %d lines rescheduled", st.Trips, st.Skipped, st.Lines)
	return st, nil
}

// delays returns the delay in seconds at every stop of the trip. Stops
// without an update inherit the delay of the previous one; stops before
// the first update take its delay.
func (u *Updater) delays(id string, tb gtfs.TripBinding, tu *gtfsrtpb.TripUpdate) ([]int64, bool) {
	known := make([]bool, len(tb.Stops))
	out := make([]int64, len(tb.Stops))
	found := false
	for _, stu := range tu.GetStopTimeUpdate() {
		if stu.GetScheduleRelationship() != gtfsrtpb.TripUpdate_StopTimeUpdate_SCHEDULED {
			continue
		}
		i := u.position(tb, stu)
		if i < 0 {
			u.diag.Add(diag.FeedStopUnknown, fmt.Sprintf("%s in trip %s", stu.GetStopId(), id))
			continue
		}
		var d int32
		switch {
		case stu.GetArrival() != nil && stu.GetArrival().Delay != nil:
			d = stu.GetArrival().GetDelay()
		case stu.GetDeparture() != nil && stu.GetDeparture().Delay != nil:
			d = stu.GetDeparture().GetDelay()
		default:
			continue
		}
		out[i], known[i], found = int64(d), true, true
	}
	if !found {
		if tu.Delay == nil {
			return nil, false
		}
		// a trip-level delay shifts every stop alike
		return out, true
	}
	first := slices.Index(known, true)
	for i := range out {
		switch {
		case i < first:
			out[i] = out[first]
		case !known[i]:
			out[i] = out[i-1]
		}
	}
	return out, true
}

// position finds the trip stop an update refers to, by sequence number
// when the stop ID is absent.
func (u *Updater) position(tb gtfs.TripBinding, stu *gtfsrtpb.TripUpdate_StopTimeUpdate) int {
	if stu.StopId != nil {
		return slices.Index(tb.Stops, stu.GetStopId())
	}
	if stu.StopSequence != nil {
		i := int(stu.GetStopSequence()) - 1
		if i >= 0 && i < len(tb.Stops) {
			return i
		}
	}
	return -1
}

func (u *Updater) applyLine(lh halt.LineHandle, s *legSamples) (bool, error) {
	l, ok := u.network.Line(lh)
	if !ok {
		u.diag.Add(diag.UnboundHandle, lh.String())
		return false, nil
	}
	sched := l.Schedule()
	legs := slices.Clone(u.binding.Legs[lh])
	for i := range legs {
		if s.count[i] > 0 {
			legs[i] = uint32(roundDiv(s.sum[i], s.count[i]))
		}
	}
	if slices.Equal(legs, sched.Legs) {
		return false, nil
	}
	sched.Legs = legs
	if err := u.network.SetSchedule(lh, sched); err != nil {
		return false, fmt.Errorf("reschedule line %q: %w", l.Name(), err)
	}
	return true, nil
}

// roundDiv divides rounding half away from zero.
func roundDiv(a, b int64) int64 {
	if (a < 0) != (b < 0) {
		return (a - b/2) / b
	}
	return (a + b/2) / b
}
