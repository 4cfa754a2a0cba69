package halt

import (
	"context"
	"errors"
	"image"
	"reflect"
	"testing"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
	"github.com/theoremus-urban-solutions/haltnet/goods"
)

var paxOnly = goods.NewCategorySet(goods.CategoryPassengers)

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	cfg := config.Default()
	return NewNetwork(cfg.Routing, cfg.Ledger, goods.NewCatalog())
}

func addStations(t *testing.T, n *Network, names ...string) []Handle {
	t.Helper()
	out := make([]Handle, len(names))
	for i, name := range names {
		h, err := n.AddStation(name, image.Pt(i*4, 0), EnableAll)
		if err != nil {
			t.Fatalf("AddStation(%q) failed: %v", name, err)
		}
		out[i] = h
	}
	return out
}

func circular(cats goods.CategorySet, legs []uint32, stops ...Handle) Schedule {
	s := Schedule{Legs: legs, Categories: cats}
	for _, h := range stops {
		s.Entries = append(s.Entries, ScheduleEntry{Halt: h})
	}
	return s
}

func mustLine(t *testing.T, n *Network, name string, s Schedule) LineHandle {
	t.Helper()
	l, err := n.AddLine(name, s)
	if err != nil {
		t.Fatalf("AddLine(%q) failed: %v", name, err)
	}
	return l
}

// TestTransferPath checks a two-line journey resolves to the transfer station.
func TestTransferPath(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "X", "Y", "Z")
	mustLine(t, n, "1", circular(paxOnly, []uint32{10, 10}, h[0], h[1]))
	l2 := mustLine(t, n, "2", circular(paxOnly, []uint32{15, 15}, h[1], h[2]))

	p := n.PathTo(h[0], h[2], goods.CategoryPassengers)
	if !p.Reachable() {
		t.Fatal("expected X->Z to be reachable")
	}
	if p.NextTransfer != h[1] {
		t.Errorf("expected next transfer Y, got %s", p.NextTransfer)
	}
	if p.JourneyTime != 25 {
		t.Errorf("expected journey time 25, got %d", p.JourneyTime)
	}
	if got := n.Route(h[0], h[2], goods.CategoryPassengers); !reflect.DeepEqual(got, h) {
		t.Errorf("expected route %v, got %v", h, got)
	}

	// Removing the second line makes Z unreachable once caches go stale.
	if !n.RemoveLine(l2) {
		t.Fatal("RemoveLine returned false")
	}
	if p := n.PathTo(h[0], h[2], goods.CategoryPassengers); p.Reachable() {
		t.Errorf("expected X->Z unreachable after line removal, got %+v", p)
	}
	if n.Route(h[0], h[2], goods.CategoryPassengers) != nil {
		t.Error("expected nil route for unreachable destination")
	}
}

// TestPathOtherCategory checks a passenger line does not route mail.
func TestPathOtherCategory(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B")
	mustLine(t, n, "1", circular(paxOnly, []uint32{3, 3}, h[0], h[1]))

	if p := n.PathTo(h[0], h[1], goods.CategoryMail); p.Reachable() {
		t.Errorf("expected mail to be unroutable, got %+v", p)
	}
	if tbl := n.tablesFor(mustStation(t, n, h[0]), goods.CategoryMail); tbl.Len() != 0 {
		t.Errorf("expected empty mail table, got %d entries", tbl.Len())
	}
}

// TestFasterLineNeverSlows checks adding a service never increases journey time.
func TestFasterLineNeverSlows(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "X", "Y", "Z")
	mustLine(t, n, "1", circular(paxOnly, []uint32{10, 10}, h[0], h[1]))
	mustLine(t, n, "2", circular(paxOnly, []uint32{15, 15}, h[1], h[2]))
	before := n.PathTo(h[0], h[2], goods.CategoryPassengers)

	mustLine(t, n, "express", circular(paxOnly, []uint32{5, 5}, h[0], h[2]))
	after := n.PathTo(h[0], h[2], goods.CategoryPassengers)
	if after.JourneyTime > before.JourneyTime {
		t.Errorf("journey time grew from %d to %d", before.JourneyTime, after.JourneyTime)
	}
	if after.NextTransfer != h[2] || after.JourneyTime != 5 {
		t.Errorf("expected direct hop in 5, got %+v", after)
	}
}

// TestMirroredSchedule checks the return leg of a back-and-forth service.
func TestMirroredSchedule(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C")
	s := circular(paxOnly, []uint32{5, 7}, h...)
	s.Mirrored = true
	mustLine(t, n, "shuttle", s)

	tests := []struct {
		from, to Handle
		want     uint32
	}{
		{h[0], h[1], 5},
		{h[0], h[2], 12},
		{h[2], h[1], 7},
		{h[2], h[0], 12},
		{h[1], h[0], 5},
		{h[1], h[2], 7},
	}
	for _, tt := range tests {
		c, ok := n.tablesFor(mustStation(t, n, tt.from), goods.CategoryPassengers).Get(tt.to)
		if !ok {
			t.Errorf("%s->%s: missing connexion", tt.from, tt.to)
			continue
		}
		if c.JourneyTime != tt.want {
			t.Errorf("%s->%s: expected %d, got %d", tt.from, tt.to, tt.want, c.JourneyTime)
		}
	}
}

// TestCircularWraps checks a round trip reaches earlier stops through the wrap.
func TestCircularWraps(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C")
	mustLine(t, n, "loop", circular(paxOnly, []uint32{1, 2, 4}, h...))

	c, ok := n.tablesFor(mustStation(t, n, h[2]), goods.CategoryPassengers).Get(h[1])
	if !ok || c.JourneyTime != 5 {
		t.Errorf("expected C->B in 5 via wrap, got %+v (found=%v)", c, ok)
	}
}

// TestWaitingTimeSamples checks recorded samples replace the schedule wait.
func TestWaitingTimeSamples(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B")
	s := circular(paxOnly, []uint32{4, 4}, h...)
	s.Entries[0].Wait = 6
	mustLine(t, n, "1", s)

	a := mustStation(t, n, h[0])
	if c, _ := n.tablesFor(a, goods.CategoryPassengers).Get(h[1]); c.WaitingTime != 6 {
		t.Errorf("expected schedule wait 6, got %d", c.WaitingTime)
	}
	n.RecordWaitingTime(h[0], h[1], goods.CategoryPassengers, 2)
	n.RecordWaitingTime(h[0], h[1], goods.CategoryPassengers, 4)
	if got := n.buildConnexions(a, goods.CategoryPassengers); got.entries[h[1]].WaitingTime != 3 {
		t.Errorf("expected averaged wait 3, got %d", got.entries[h[1]].WaitingTime)
	}
}

// TestRebuildIdempotent checks rebuilding without changes yields the same table.
func TestRebuildIdempotent(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C")
	mustLine(t, n, "1", circular(paxOnly, []uint32{1, 2, 3}, h...))
	mustLine(t, n, "2", circular(paxOnly, []uint32{1, 1}, h[0], h[2]))

	s := mustStation(t, n, h[0])
	first := n.buildConnexions(s, goods.CategoryPassengers)
	second := n.buildConnexions(s, goods.CategoryPassengers)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("rebuild not idempotent:\n%+v\n%+v", first, second)
	}
	if c := first.entries[h[2]]; c.JourneyTime != 1 {
		t.Errorf("expected the faster line to win, got %d", c.JourneyTime)
	}
}

// TestResumableSearch checks a bounded search continues where it stopped.
func TestResumableSearch(t *testing.T) {
	cfg := config.Default()
	cfg.Routing.MaxExpansions = 1
	n := NewNetwork(cfg.Routing, cfg.Ledger, nil)
	h := addStations(t, n, "A", "B", "C", "D")
	for i := 0; i < 3; i++ {
		mustLine(t, n, "", circular(paxOnly, []uint32{2, 2}, h[i], h[i+1]))
	}

	var p Path
	calls := 0
	for calls = 1; calls <= 10; calls++ {
		if p = n.PathTo(h[0], h[3], goods.CategoryPassengers); p.Reachable() {
			break
		}
	}
	if !p.Reachable() {
		t.Fatal("search never reached D")
	}
	if calls != 4 {
		t.Errorf("expected 4 bounded calls, got %d", calls)
	}
	if p.JourneyTime != 6 || p.NextTransfer != h[1] {
		t.Errorf("unexpected path %+v", p)
	}
	if got := mustStation(t, n, h[0]).paths[goods.CategoryPassengers].Settled(); got != 4 {
		t.Errorf("expected 4 settled stations, got %d", got)
	}
}

// TestRemoveStation checks handles to removed stations resolve to unbound.
func TestRemoveStation(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B")
	mustLine(t, n, "1", circular(paxOnly, []uint32{3, 3}, h...))
	if !n.PathTo(h[0], h[1], goods.CategoryPassengers).Reachable() {
		t.Fatal("expected A->B reachable")
	}

	if !n.RemoveStation(h[1]) {
		t.Fatal("RemoveStation returned false")
	}
	if _, ok := n.Station(h[1]); ok {
		t.Error("removed station still resolves")
	}
	if n.PathTo(h[0], h[1], goods.CategoryPassengers).Reachable() {
		t.Error("expected removed station to be unreachable")
	}
	// The name is free again and the new station gets a fresh handle.
	b, err := n.AddStation("B", image.Pt(9, 9), EnableAll)
	if err != nil {
		t.Fatalf("re-adding B failed: %v", err)
	}
	if b == h[1] {
		t.Error("reused slot kept the old generation")
	}
}

// TestDuplicateName checks the name registry.
func TestDuplicateName(t *testing.T) {
	n := newTestNetwork(t)
	addStations(t, n, "A")
	if _, err := n.AddStation("A", image.Point{}, EnableAll); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	h, err := n.AddStation("", image.Point{}, EnableAll)
	if err != nil {
		t.Fatalf("generated name failed: %v", err)
	}
	if s := mustStation(t, n, h); s.Name() == "" {
		t.Error("expected a generated name")
	}
}

// TestInvalidSchedule checks leg validation.
func TestInvalidSchedule(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C")
	if _, err := n.AddLine("bad", circular(paxOnly, []uint32{1}, h...)); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
	l := mustLine(t, n, "ok", circular(paxOnly, []uint32{1, 1, 1}, h...))
	if err := n.SetSchedule(l, circular(paxOnly, nil, h...)); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule from SetSchedule, got %v", err)
	}
}

// TestSetScheduleReroutes checks a schedule change moves the path.
func TestSetScheduleReroutes(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C")
	l := mustLine(t, n, "1", circular(paxOnly, []uint32{2, 2}, h[0], h[1]))
	if n.PathTo(h[0], h[2], goods.CategoryPassengers).Reachable() {
		t.Fatal("C should not be reachable yet")
	}
	epoch := n.Epoch(goods.CategoryPassengers)

	if err := n.SetSchedule(l, circular(paxOnly, []uint32{2, 2}, h[0], h[2])); err != nil {
		t.Fatalf("SetSchedule failed: %v", err)
	}
	if n.Epoch(goods.CategoryPassengers) <= epoch {
		t.Error("expected the epoch to move")
	}
	if !n.PathTo(h[0], h[2], goods.CategoryPassengers).Reachable() {
		t.Error("expected C reachable after schedule change")
	}
	if n.PathTo(h[0], h[1], goods.CategoryPassengers).Reachable() {
		t.Error("expected B unreachable after schedule change")
	}
	if got := mustStation(t, n, h[1]).Lines(); len(got) != 0 {
		t.Errorf("expected B to have no lines, got %v", got)
	}
}

// TestConvoyConnexions checks unscheduled convoys produce connexions.
func TestConvoyConnexions(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B")
	c, err := n.AddConvoy(circular(paxOnly, []uint32{8, 8}, h...))
	if err != nil {
		t.Fatalf("AddConvoy failed: %v", err)
	}
	conn, ok := n.tablesFor(mustStation(t, n, h[0]), goods.CategoryPassengers).Get(h[1])
	if !ok {
		t.Fatal("missing convoy connexion")
	}
	if got, isConvoy := conn.Service.Convoy(); !isConvoy || got != c {
		t.Errorf("expected service %s, got %s", ConvoyService(c), conn.Service)
	}
	n.RemoveConvoy(c)
	if n.PathTo(h[0], h[1], goods.CategoryPassengers).Reachable() {
		t.Error("expected no route after convoy removal")
	}
}

// TestDisabledTarget checks stations not accepting a category are skipped.
func TestDisabledTarget(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B")
	mustLine(t, n, "1", circular(goods.NewCategorySet(goods.CategoryMail), []uint32{1, 1}, h...))
	if err := n.SetFlags(h[1], EnablePassengers); err != nil {
		t.Fatalf("SetFlags failed: %v", err)
	}
	if n.PathTo(h[0], h[1], goods.CategoryMail).Reachable() {
		t.Error("expected B to refuse mail")
	}
}

// TestStepRebuildBudget checks ordered mode honours the per-tick budget.
func TestStepRebuildBudget(t *testing.T) {
	cfg := config.Default()
	cfg.Routing.RebuildsPerStep = 2
	n := NewNetwork(cfg.Routing, cfg.Ledger, nil)
	h := addStations(t, n, "A", "B", "C", "D")
	mustLine(t, n, "1", circular(paxOnly, []uint32{1, 1, 1, 1}, h...))
	if n.Pending() != 4 {
		t.Fatalf("expected 4 pending, got %d", n.Pending())
	}
	n.Step()
	if n.Pending() != 2 {
		t.Errorf("expected 2 pending after one step, got %d", n.Pending())
	}
	n.Step()
	for _, x := range h {
		if mustStation(t, n, x).Connexions(goods.CategoryPassengers) == nil {
			t.Errorf("station %s not rebuilt", x)
		}
	}
}

// TestRebuildAll checks the parallel bulk rebuild.
func TestRebuildAll(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C", "D", "E")
	mustLine(t, n, "1", circular(paxOnly, []uint32{1, 2, 3, 4, 5}, h...))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.RebuildAll(ctx, 3); err == nil {
		t.Error("expected an error from a cancelled rebuild")
	}
	if mustStation(t, n, h[0]).Connexions(goods.CategoryPassengers) != nil {
		t.Error("cancelled rebuild must not publish tables")
	}

	if err := n.RebuildAll(context.Background(), 3); err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}
	if n.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", n.Pending())
	}
	for _, x := range h {
		s := mustStation(t, n, x)
		if got := s.Connexions(goods.CategoryPassengers).Len(); got != 4 {
			t.Errorf("station %s: expected 4 connexions, got %d", s.Name(), got)
		}
	}
}

// TestExportImport checks persisted state rebuilds an equivalent network.
func TestExportImport(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C")
	mustLine(t, n, "1", circular(paxOnly, []uint32{2, 3, 4}, h...))
	n.RemoveStation(h[2])
	n.Deliver(h[0], Packet{Type: goods.Passengers, Amount: 5, Origin: h[0], Destination: h[1], Source: FromCity(7)})
	n.Step()

	state := n.Export()
	d := diag.NewAggregator()
	loaded := Import(state, config.Default().Routing, config.Default().Ledger, goods.NewCatalog(), d)
	again := loaded.Export()
	if !reflect.DeepEqual(again.Stations, state.Stations) {
		t.Errorf("stations differ:\n%+v\n%+v", again.Stations, state.Stations)
	}
	// The removed stop resolves to unbound on load.
	if d.Count(diag.UnboundHandle) != 1 {
		t.Errorf("expected one unbound stop, got %d", d.Count(diag.UnboundHandle))
	}
	if stops := again.Lines[0].Stops; len(stops) != 3 || stops[2] != 0 {
		t.Errorf("expected the removed stop to load unbound, got %v", stops)
	}
	if !loaded.PathTo(h[0], h[1], goods.CategoryPassengers).Reachable() {
		t.Error("expected loaded network to route A->B")
	}
	if loaded.Tick() != n.Tick() {
		t.Errorf("expected tick %d, got %d", n.Tick(), loaded.Tick())
	}
}

// TestImportBadEntities checks invalid entities are skipped rather than fatal.
func TestImportBadEntities(t *testing.T) {
	state := NetworkState{
		Stations: []StationState{
			{ID: 1<<32 | 1, Name: "A", Flags: uint8(EnableAll)},
			{ID: 1<<32 | 1, Name: "dup-slot", Flags: uint8(EnableAll)},
			{ID: 1<<32 | 2, Name: "B", Flags: uint8(EnableAll), Waiting: []PacketState{
				{TypeID: 99, Amount: 1, Destination: 1<<32 | 1},
				{TypeID: 0, Amount: 2, Destination: 1<<32 | 9},
				{TypeID: 0, Amount: 3, Destination: 1<<32 | 1, NextHop: 1<<32 | 9},
			}},
		},
		Lines: []ServiceState{{ID: 1<<32 | 1, Name: "short", Stops: []uint64{1<<32 | 1, 1<<32 | 2}, Legs: []uint32{1}}},
	}
	d := diag.NewAggregator()
	n := Import(state, config.Default().Routing, config.Default().Ledger, nil, d)
	if n.StationCount() != 2 {
		t.Errorf("expected 2 stations, got %d", n.StationCount())
	}
	// duplicate slot, unknown type, unknown destination, invalid legs
	if got := d.Count(diag.UnboundHandle); got != 4 {
		t.Errorf("expected 4 diagnostics, got %d: %v", got, d.Lines("import"))
	}
	b, _ := n.StationByName("B")
	waiting := n.WaitingPackets(b, goods.CategoryPassengers)
	if len(waiting) != 1 || waiting[0].Amount != 3 || !waiting[0].NextHop.IsZero() {
		t.Errorf("expected one packet with unbound next hop, got %+v", waiting)
	}
}

func mustStation(t *testing.T, n *Network, h Handle) *Station {
	t.Helper()
	s, ok := n.Station(h)
	if !ok {
		t.Fatalf("station %s not bound", h)
	}
	return s
}

// TestCacheHitLimit checks a path cache is reseeded after the configured
// number of hits.
func TestCacheHitLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Routing.MaxCacheHits = 2
	n := NewNetwork(cfg.Routing, cfg.Ledger, nil)
	h := addStations(t, n, "A", "B")
	mustLine(t, n, "1", circular(paxOnly, []uint32{3, 3}, h...))

	a := mustStation(t, n, h[0])
	n.PathTo(h[0], h[1], goods.CategoryPassengers)
	first := a.paths[goods.CategoryPassengers]
	for i := 0; i < 2; i++ {
		n.PathTo(h[0], h[1], goods.CategoryPassengers)
	}
	if a.paths[goods.CategoryPassengers] != first || first.hits != 2 {
		t.Fatalf("expected the first cache to serve 2 hits, got %d", first.hits)
	}
	p := n.PathTo(h[0], h[1], goods.CategoryPassengers)
	if a.paths[goods.CategoryPassengers] == first {
		t.Error("expected a fresh cache after the hit limit")
	}
	if !p.Reachable() || p.JourneyTime != 3 {
		t.Errorf("expected the reseeded cache to answer 3, got %+v", p)
	}
}

// TestCalculatePaths checks a bounded full search completes over repeated
// calls.
func TestCalculatePaths(t *testing.T) {
	cfg := config.Default()
	cfg.Routing.MaxExpansions = 1
	n := NewNetwork(cfg.Routing, cfg.Ledger, nil)
	h := addStations(t, n, "A", "B", "C", "D")
	for i := 0; i < 3; i++ {
		mustLine(t, n, "", circular(paxOnly, []uint32{2, 2}, h[i], h[i+1]))
	}

	for call := 1; call <= 3; call++ {
		if n.CalculatePaths(h[0], goods.CategoryPassengers) {
			t.Fatalf("expected call %d to stop at the expansion budget", call)
		}
	}
	if !n.CalculatePaths(h[0], goods.CategoryPassengers) {
		t.Fatal("expected the fourth call to finish the search")
	}
	if got := mustStation(t, n, h[0]).paths[goods.CategoryPassengers].Settled(); got != 4 {
		t.Errorf("expected 4 settled stations, got %d", got)
	}
	if p := n.PathTo(h[0], h[3], goods.CategoryPassengers); p.JourneyTime != 6 {
		t.Errorf("expected journey time 6 from the precomputed cache, got %+v", p)
	}
	if n.CalculatePaths(Handle{}, goods.CategoryPassengers) {
		t.Error("expected an unbound station to report false")
	}
}

// TestWarmPaths checks every station with connexions gets a finished cache.
func TestWarmPaths(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C", "Lonely")
	mustLine(t, n, "1", circular(paxOnly, []uint32{2, 2, 2}, h[0], h[1], h[2]))
	if err := n.RebuildAll(context.Background(), 2); err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	if got := n.WarmPaths(); got != 3 {
		t.Errorf("expected 3 finished searches, got %d", got)
	}
	if mustStation(t, n, h[3]).paths[goods.CategoryPassengers] != nil {
		t.Error("expected no cache for a station without connexions")
	}
	if pc := mustStation(t, n, h[1]).paths[goods.CategoryPassengers]; pc == nil || !pc.complete {
		t.Error("expected a complete cache at B")
	}
}

// TestWaitingTimesSurviveImport checks recorded waiting times are part of
// the exported state and shape the loaded connexions.
func TestWaitingTimesSurviveImport(t *testing.T) {
	n := newTestNetwork(t)
	h := addStations(t, n, "A", "B", "C")
	mustLine(t, n, "1", circular(paxOnly, []uint32{2, 2}, h[0], h[1]))
	for v := uint16(1); v <= 18; v++ {
		n.RecordWaitingTime(h[0], h[1], goods.CategoryPassengers, v)
	}
	n.RecordWaitingTime(h[0], h[2], goods.CategoryPassengers, 5)
	n.RemoveStation(h[2])

	state := n.Export()
	waits := state.Stations[0].Waits
	if len(waits) != 2 || len(waits[0].Samples) != 16 || waits[0].Samples[0] != 3 || waits[0].Samples[15] != 18 {
		t.Fatalf("expected the last 16 samples oldest first, got %+v", waits)
	}

	d := diag.NewAggregator()
	loaded := Import(state, config.Default().Routing, config.Default().Ledger, goods.NewCatalog(), d)
	if d.Count(diag.UnboundHandle) != 1 {
		t.Errorf("expected the removed target to be reported once, got %d", d.Count(diag.UnboundHandle))
	}
	want := n.PathTo(h[0], h[1], goods.CategoryPassengers)
	got := loaded.PathTo(h[0], h[1], goods.CategoryPassengers)
	if want.JourneyTime != 12 || got.JourneyTime != want.JourneyTime {
		t.Errorf("expected journey time 12 before and after import, got %d and %d", want.JourneyTime, got.JourneyTime)
	}
}
