package persist

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/theoremus-urban-solutions/haltnet/city"
	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
	"github.com/theoremus-urban-solutions/haltnet/sim"
)

func sampleStation() halt.StationState {
	st := halt.StationState{
		ID:       1<<32 | 3,
		Name:     "Old Market",
		X:        -4,
		Y:        17,
		Flags:    uint8(halt.EnableAll),
		Capacity: [goods.NumClasses]uint32{256, 128, 0},
		Waiting: []halt.PacketState{
			{TypeID: 0, Amount: 12, Origin: 1<<32 | 3, Destination: 1<<32 | 5, NextHop: 1<<32 | 4, SourceKind: 1, SourceID: 9, Enqueued: 40},
			{TypeID: 2, Amount: 300, Destination: 1<<32 | 5, Retries: 3},
		},
		Waits: []halt.WaitState{
			{Category: 0, Target: 1<<32 | 4, Samples: []uint16{3, 0, 9}},
		},
	}
	st.History[0][halt.CostArrived] = 42
	st.History[11][halt.CostNoRoute] = -1
	return st
}

// TestStationRoundTrip checks a station survives encoding.
func TestStationRoundTrip(t *testing.T) {
	want := sampleStation()
	got, err := DecodeStation(EncodeStation(want))
	if err != nil {
		t.Fatalf("DecodeStation failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("station mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

// TestNetworkRoundTrip checks lines and convoys keep their schedules.
func TestNetworkRoundTrip(t *testing.T) {
	want := halt.NetworkState{
		Tick:     99,
		Stations: []halt.StationState{sampleStation()},
		Lines: []halt.ServiceState{{
			ID: 1<<32 | 1, Name: "Ring", Stops: []uint64{1<<32 | 3, 0}, Waits: []uint32{2, 0},
			Legs: []uint32{5, 7}, Categories: 3,
		}},
		Convoys: []halt.ServiceState{{
			ID: 1<<32 | 1, Stops: []uint64{1<<32 | 3, 1<<32 | 4, 1<<32 | 5}, Waits: []uint32{1, 1, 1},
			Legs: []uint32{4, 4}, Categories: 4, Mirrored: true,
		}},
	}
	got, err := DecodeNetwork(EncodeNetwork(want))
	if err != nil {
		t.Fatalf("DecodeNetwork failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("network mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

// TestCityRoundTrip checks a city survives encoding.
func TestCityRoundTrip(t *testing.T) {
	want := city.State{
		ID:            2,
		Name:          "Brigg",
		X:             45,
		Y:             15,
		Bounds:        image.Rect(42, 12, 49, 19),
		Bev:           180,
		Arb:           120,
		Won:           150,
		Unsupplied:    -5,
		MonthsElapsed: 14,
		Incoming:      3,
		Outgoing:      1,
		Buildings: []city.BuildingState{
			{X: 43, Y: 14, Kind: 0, Level: 2, OwnerKind: uint8(city.OwnerCity), OwnerID: 2},
			{X: 44, Y: 14, Kind: 1},
		},
		Links: []city.LinkState{{Kind: 0, ID: 1, Tiles: 35}, {Kind: 1, ID: 7, Tiles: city.Unreachable}},
		RNG:   []byte("pcg:0123456789abcdef0123456789abcdef"),
	}
	want.Month[0][city.HistCitizens] = 180
	want.Month[3][city.HistCongestion] = 12
	want.Year[11][city.HistPasGenerated] = 4000
	want.Previous[city.FactorMail] = [2]int64{-10, 4}

	got, err := DecodeCity(EncodeCity(want))
	if err != nil {
		t.Fatalf("DecodeCity failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("city mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func testWorld(t *testing.T) *sim.World {
	t.Helper()
	cfg := config.Default()
	cfg.Sim.MapWidth, cfg.Sim.MapHeight = 60, 30
	cfg.Sim.PassengerRate = 50
	w := sim.New(cfg)
	for x := 0; x < 60; x++ {
		w.Grid().BuildRoad(image.Pt(x, 15))
	}
	if _, err := w.FoundCity("Aston", image.Pt(10, 15), 3, 80); err != nil {
		t.Fatalf("FoundCity failed: %v", err)
	}
	if _, err := w.FoundCity("Brigg", image.Pt(45, 15), 3, 80); err != nil {
		t.Fatalf("FoundCity failed: %v", err)
	}
	w.Catalog().Add("coal", goods.CategoryPiece)
	a, _ := w.Network().AddStation("Aston Halt", image.Pt(10, 17), halt.EnableAll)
	b, _ := w.Network().AddStation("Brigg Halt", image.Pt(45, 17), halt.EnableAll)
	if _, err := w.Network().AddLine("shuttle", halt.Schedule{
		Entries:    []halt.ScheduleEntry{{Halt: a}, {Halt: b}},
		Legs:       []uint32{6, 6},
		Categories: goods.NewCategorySet(goods.CategoryPassengers),
	}); err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		w.Step()
	}
	return w
}

// TestSaveLoad checks a saved world loads back with the same state.
func TestSaveLoad(t *testing.T) {
	w := testWorld(t)
	path := filepath.Join(t.TempDir(), "world.hn")
	if err := Save(w, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	r, err := Load(path, config.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r.ID() != w.ID() || r.Tick() != w.Tick() {
		t.Errorf("expected world %s at %d, got %s at %d", w.ID(), w.Tick(), r.ID(), r.Tick())
	}
	if r.Network().StationCount() != 2 || len(r.Cities()) != 2 {
		t.Errorf("expected 2 stations and 2 cities, got %d and %d", r.Network().StationCount(), len(r.Cities()))
	}
	if r.Grid().Area() != w.Grid().Area() {
		t.Errorf("expected area %v, got %v", w.Grid().Area(), r.Grid().Area())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	st, err := r.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !bytes.Equal(EncodeWorld(st), data) {
		t.Error("expected the restored world to encode to the saved bytes")
	}
}

// TestDecodeErrors checks malformed input is rejected with the right error.
func TestDecodeErrors(t *testing.T) {
	good := EncodeWorld(sim.State{Name: "x", Width: 4, Height: 4, RNG: []byte("r")})

	var shortHistory encoder
	shortHistory.putPacked(7, []int64{1, 2})

	var noVersion encoder
	noVersion.putString(1, "x")

	var future encoder
	future.putUint(15, Version+1)

	tests := []struct {
		name   string
		decode func() error
		want   error
	}{
		{"garbage", func() error { _, err := DecodeWorld([]byte{0xff}); return err }, ErrCorrupt},
		{"truncated", func() error { _, err := DecodeWorld(good[:len(good)-1]); return err }, ErrCorrupt},
		{"short history", func() error { _, err := DecodeStation(shortHistory.b); return err }, ErrCorrupt},
		{"missing version", func() error { _, err := DecodeWorld(noVersion.b); return err }, ErrVersion},
		{"future version", func() error { _, err := DecodeWorld(future.b); return err }, ErrVersion},
		{"valid", func() error { _, err := DecodeWorld(good); return err }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestLoadSubstitutes checks a city that cannot be restored is skipped
// with a diagnostic instead of failing the load.
func TestLoadSubstitutes(t *testing.T) {
	w := testWorld(t)
	st, err := w.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	st.Cities[1].RNG = []byte("broken")
	path := filepath.Join(t.TempDir(), "world.hn")
	if err := os.WriteFile(path, EncodeWorld(st), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path, config.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(r.Cities()) != 1 {
		t.Errorf("expected the broken city skipped, got %d cities", len(r.Cities()))
	}
}
