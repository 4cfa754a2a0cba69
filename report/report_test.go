package report

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
	"github.com/theoremus-urban-solutions/haltnet/sim"
)

func newTestWorld(t *testing.T) *sim.World {
	t.Helper()
	cfg := config.Default()
	cfg.Sim.MapWidth, cfg.Sim.MapHeight = 60, 30
	cfg.Sim.PassengerRate, cfg.Sim.MailRate = 0, 0
	w := sim.New(cfg)
	for x := 0; x < cfg.Sim.MapWidth; x++ {
		w.Grid().BuildRoad(image.Pt(x, 15))
	}
	if _, err := w.FoundCity("Aston & Co", image.Pt(10, 15), 3, 0); err != nil {
		t.Fatalf("FoundCity failed: %v", err)
	}
	n := w.Network()
	a, err := n.AddStation("Aston Halt", image.Pt(10, 17), halt.EnableAll)
	if err != nil {
		t.Fatalf("AddStation failed: %v", err)
	}
	b, err := n.AddStation("Brigg Halt", image.Pt(45, 17), halt.EnableAll)
	if err != nil {
		t.Fatalf("AddStation failed: %v", err)
	}
	_, err = n.AddLine("shuttle", halt.Schedule{
		Entries:    []halt.ScheduleEntry{{Halt: a}, {Halt: b}},
		Legs:       []uint32{5, 5},
		Categories: goods.NewCategorySet(goods.CategoryPassengers),
	})
	if err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	return w
}

// TestBuild checks a snapshot lists cities, stations and lines.
func TestBuild(t *testing.T) {
	w := newTestWorld(t)
	s := Build(w)
	if s.World != w.ID().String() || s.Tick != 0 {
		t.Errorf("header = %q tick %d", s.World, s.Tick)
	}
	if len(s.Cities) != 1 || s.Cities[0].Name != "Aston & Co" {
		t.Fatalf("cities = %+v", s.Cities)
	}
	if len(s.Stations) != 2 {
		t.Fatalf("stations = %d, want 2", len(s.Stations))
	}
	if got := s.Stations[0].Lines; len(got) != 1 || got[0] != "shuttle" {
		t.Errorf("station lines = %v", got)
	}
	if len(s.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(s.Lines))
	}
	l := s.Lines[0]
	if l.Name != "shuttle" || len(l.Stops) != 2 || l.Stops[1] != "Brigg Halt" {
		t.Errorf("line = %+v", l)
	}
}

// TestPath checks named route queries.
func TestPath(t *testing.T) {
	w := newTestWorld(t)
	p, err := Path(w.Network(), "Aston Halt", "Brigg Halt", goods.CategoryPassengers)
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if !p.Reachable || p.Next != "Brigg Halt" || p.JourneyTime == 0 {
		t.Errorf("path = %+v", p)
	}
	if len(p.Stations) != 2 || p.Stations[0] != "Aston Halt" {
		t.Errorf("stations = %v", p.Stations)
	}

	p, err = Path(w.Network(), "Aston Halt", "Brigg Halt", goods.CategoryMail)
	if err != nil || p.Reachable {
		t.Errorf("mail path = %+v, %v; want unreachable", p, err)
	}
	if _, err := Path(w.Network(), "Nowhere", "Brigg Halt", goods.CategoryPassengers); !errors.Is(err, ErrUnknownStation) {
		t.Errorf("err = %v, want ErrUnknownStation", err)
	}
}

// TestBuildXML checks the XML rendering escapes names and carries the tick.
func TestBuildXML(t *testing.T) {
	w := newTestWorld(t)
	out := string(BuildXML(Build(w)))
	for _, want := range []string{
		`tick="0"`,
		"<Name>Aston &amp; Co</Name>",
		"<LineRef>shuttle</LineRef>",
		`<Stop leg="5">Aston Halt</Stop>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("XML missing %q:\n%s", want, out)
		}
	}
	p := string(BuildPathXML(PathReport{From: "a", To: "b", Category: "mail"}))
	if p != "<Path><From>a</From><To>b</To><Category>mail</Category><Reachable>false</Reachable></Path>" {
		t.Errorf("path XML = %s", p)
	}
}

// TestErrorPayload checks both error formats.
func TestErrorPayload(t *testing.T) {
	if got := string(ErrorPayload("json", "bad")); got != `{"error":{"description":"bad"}}` {
		t.Errorf("json = %s", got)
	}
	if got := string(ErrorPayload("xml", "a<b")); got != "<Error><Description>a&lt;b</Description></Error>" {
		t.Errorf("xml = %s", got)
	}
}

// TestLiveRun checks running publishes a new snapshot.
func TestLiveRun(t *testing.T) {
	l := NewLive(newTestWorld(t))
	if got := l.Snapshot().Tick; got != 0 {
		t.Fatalf("initial tick = %d", got)
	}
	if err := l.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := l.Snapshot().Tick; got != 3 {
		t.Errorf("tick = %d, want 3", got)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if err := l.Do(func(w *sim.World) error { w.Step(); return nil }); err != nil {
		t.Fatal(err)
	}
	if got := l.Snapshot().Tick; got != 4 {
		t.Errorf("tick = %d, want 4", got)
	}
}
