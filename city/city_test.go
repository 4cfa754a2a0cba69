package city

import (
	"image"
	"reflect"
	"testing"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
)

func newTestCity(t *testing.T, g *Grid, f Founding) (*City, *diag.Aggregator) {
	t.Helper()
	cfg := config.Default()
	cfg.Traffic.CarOwnershipPercent = 100
	d := diag.NewAggregator()
	c, err := New(f, cfg.Growth, cfg.Traffic, g, d)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", f.Name, err)
	}
	return c, d
}

// TestGrowthBaseMonotonic checks growth rises with satisfaction.
func TestGrowthBaseMonotonic(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 32, 32))
	partial, _ := newTestCity(t, g, Founding{ID: 1, Name: "Partial", Pos: image.Pt(5, 5), Radius: 2})
	full, _ := newTestCity(t, g, Founding{ID: 2, Name: "Full", Pos: image.Pt(20, 20), Radius: 2})

	partial.AddGeneratedPassengers(100)
	partial.AddTransportedPassengers(40)
	full.AddGeneratedPassengers(100)
	full.AddTransportedPassengers(100)

	lo := partial.GrowthBase(6, 16)
	hi := full.GrowthBase(6, 16)
	if lo >= hi {
		t.Errorf("expected growth with 40%% supply (%d) below full supply (%d)", lo, hi)
	}
	if hi != 40<<6 {
		t.Errorf("expected full passenger satisfaction to yield %d, got %d", 40<<6, hi)
	}
	if again := full.GrowthBase(6, 16); again != 0 {
		t.Errorf("expected consumed flows to yield 0, got %d", again)
	}
}

// TestGrowthBaseClamp checks oversupply counts as full satisfaction.
func TestGrowthBaseClamp(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 16, 16))
	c, _ := newTestCity(t, g, Founding{ID: 1, Name: "C", Pos: image.Pt(8, 8)})
	c.AddGeneratedMail(10)
	c.AddTransportedMail(50)
	if got, want := c.GrowthBase(6, 16), int64(20<<6); got != want {
		t.Errorf("expected clamped mail growth %d, got %d", want, got)
	}
}

// TestMonthCarriesUnconsumedFlows checks month boundaries do not double count.
func TestMonthCarriesUnconsumedFlows(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 16, 16))
	c, _ := newTestCity(t, g, Founding{ID: 1, Name: "C", Pos: image.Pt(8, 8)})
	c.AddGeneratedPassengers(100)
	c.AddTransportedPassengers(50)
	c.GrowthBase(6, 16)

	c.AddGeneratedPassengers(20)
	c.AddTransportedPassengers(10)
	c.NewMonth()

	if got := c.HistoryMonth(1, HistPasGenerated); got != 120 {
		t.Errorf("expected 120 generated last month, got %d", got)
	}
	if got, want := c.GrowthBase(6, 16), int64(20<<6); got != want {
		t.Errorf("expected the carried 10/20 to give %d, got %d", want, got)
	}
}

// TestChangeSizeBuilds checks new citizens raise buildings.
func TestChangeSizeBuilds(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 40, 40))
	c, d := newTestCity(t, g, Founding{ID: 1, Name: "Town", Pos: image.Pt(20, 20), Radius: 3, Seed: 7})
	c.ChangeSize(200)

	if len(c.Buildings()) == 0 {
		t.Fatal("expected buildings")
	}
	if d.Count(diag.ConstructionFailed) != 0 {
		t.Fatalf("unexpected construction failures: %v", d.Lines("growth"))
	}
	if got := c.Population(); got != 200 {
		t.Errorf("expected population 200, got %d", got)
	}
	if 2*c.bev > c.won+c.arb+100 {
		t.Errorf("city left underbuilt: bev=%d won=%d arb=%d", c.bev, c.won, c.arb)
	}
	for _, b := range c.Buildings() {
		if id, ok := b.Owner.City(); !ok || id != 1 {
			t.Errorf("building at %v has owner %s", b.Pos, b.Owner)
		}
		if g.Tile(b.Pos).Owner != c.Owner() {
			t.Errorf("tile %v not marked as owned", b.Pos)
		}
	}
	if c.HistoryMonth(0, HistBuilding) != int64(len(c.Buildings())) {
		t.Errorf("building history not refreshed")
	}

	c.ChangeSize(-50)
	if c.bev != 150 {
		t.Errorf("expected 150 citizens after shrinking, got %d", c.bev)
	}
}

// TestGrowthDeterministic checks equal seeds grow identical cities.
func TestGrowthDeterministic(t *testing.T) {
	grow := func() []Building {
		g := NewGrid(image.Rect(0, 0, 40, 40))
		c, _ := newTestCity(t, g, Founding{ID: 3, Name: "Twin", Pos: image.Pt(20, 20), Radius: 3, Seed: 42})
		c.ChangeSize(300)
		return c.Buildings()
	}
	if a, b := grow(), grow(); !reflect.DeepEqual(a, b) {
		t.Error("identical seeds produced different cities")
	}
}

// TestConstructionDropsGrowth checks a city with no room gives up quietly.
func TestConstructionDropsGrowth(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			g.SetBuildable(image.Pt(x, y), false)
		}
	}
	c, d := newTestCity(t, g, Founding{ID: 1, Name: "Rock", Pos: image.Pt(1, 1), Radius: 1})
	c.ChangeSize(100)

	if d.Count(diag.ConstructionFailed) != 1 {
		t.Errorf("expected one construction failure, got %d", d.Count(diag.ConstructionFailed))
	}
	if d.Count(diag.BorderExhausted) != 1 {
		t.Errorf("expected border exhaustion, got %d", d.Count(diag.BorderExhausted))
	}
	if c.Unemployed() != 51 {
		t.Errorf("expected growth to stop at 51 citizens, got %d", c.Unemployed())
	}
}

// TestEnlargeBorders checks bounds grow only onto free map area.
func TestEnlargeBorders(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 10, 5))
	a, _ := newTestCity(t, g, Founding{ID: 1, Name: "A", Pos: image.Pt(2, 2), Radius: 1})
	newTestCity(t, g, Founding{ID: 2, Name: "B", Pos: image.Pt(5, 2), Radius: 1})

	tests := []struct {
		name string
		dir  image.Point
		want bool
	}{
		{"north", image.Pt(0, -1), true},
		{"north off map", image.Pt(0, -1), false},
		{"east onto B", image.Pt(1, 0), false},
		{"west", image.Pt(-1, 0), true},
		{"south", image.Pt(0, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.enlarge(tt.dir); got != tt.want {
				t.Errorf("enlarge(%v) = %v, want %v (bounds %v)", tt.dir, got, tt.want, a.Bounds())
			}
		})
	}
	if want := image.Rect(0, 0, 4, 5); a.Bounds() != want {
		t.Errorf("expected bounds %v, got %v", want, a.Bounds())
	}
}

// TestCongestion checks the private share weighted by road use.
func TestCongestion(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 20, 20))
	c, _ := newTestCity(t, g, Founding{ID: 1, Name: "C", Pos: image.Pt(10, 10), Radius: 2})
	c.SetPrivateCarTrips(10)
	c.AddTransportedPassengers(10)
	c.NewMonth()

	// 5 road tiles x 4 cars = 20 capacity; half the traffic is private.
	if got := c.Congestion(); got != 25 {
		t.Errorf("expected congestion 25, got %d", got)
	}
	if c.IncomingPrivateCars() != 0 {
		t.Error("expected incoming cars reset")
	}
}

// TestYearRoll checks yearly aggregation.
func TestYearRoll(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 16, 16))
	c, _ := newTestCity(t, g, Founding{ID: 1, Name: "C", Pos: image.Pt(8, 8)})
	for m := 0; m < 12; m++ {
		c.AddGeneratedMail(3)
		c.NewMonth()
	}
	if got := c.HistoryYear(1, HistMailGenerated); got != 36 {
		t.Errorf("expected 36 letters last year, got %d", got)
	}
	if got := c.HistoryYear(0, HistMailGenerated); got != 0 {
		t.Errorf("expected empty running year, got %d", got)
	}
	if got := c.HistoryMonth(11, HistMailGenerated); got != 3 {
		t.Errorf("expected 3 letters eleven months ago, got %d", got)
	}
}

// TestSmoothedGrowth checks the 5/4/1 weighting.
func TestSmoothedGrowth(t *testing.T) {
	c := &City{}
	c.month[0][HistGrowth] = 2
	c.month[1][HistGrowth] = 3
	c.month[2][HistGrowth] = 7
	if got := c.Growth(); got != 2*5+3*4+7 {
		t.Errorf("expected 29, got %d", got)
	}
}

// TestExportRestore checks a city survives persistence.
func TestExportRestore(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 40, 40))
	c, _ := newTestCity(t, g, Founding{ID: 5, Name: "Saved", Pos: image.Pt(20, 20), Radius: 3, Seed: 9, Population: 180})
	c.AddGeneratedPassengers(40)
	c.GrowthBase(6, 16)
	c.NewMonth()
	c.CheckAllPrivateCarRoutes([]Target{{Kind: TargetCity, ID: 6, Pos: image.Pt(23, 20)}}, g)

	st, err := c.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	g2 := NewGrid(image.Rect(0, 0, 40, 40))
	for _, p := range g.Roads() {
		g2.BuildRoad(p)
	}
	cfg := config.Default()
	cfg.Traffic.CarOwnershipPercent = 100
	restored, err := Restore(st, cfg.Growth, cfg.Traffic, g2, nil)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	st2, err := restored.Export()
	if err != nil {
		t.Fatalf("second Export failed: %v", err)
	}
	if !reflect.DeepEqual(st, st2) {
		t.Errorf("state differs after restore")
	}
	for i := 0; i < 5; i++ {
		if a, b := c.rng.IntN(1000), restored.rng.IntN(1000); a != b {
			t.Fatalf("random streams diverge at %d: %d vs %d", i, a, b)
		}
	}
	if tiles, ok := restored.RoadConnexion(TargetCity, 6); !ok || tiles != 3 {
		t.Errorf("expected restored road link of 3 tiles, got %d (%v)", tiles, ok)
	}
}

// TestRestoreInvalid checks broken state is rejected.
func TestRestoreInvalid(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 8, 8))
	cfg := config.Default()
	if _, err := Restore(State{Name: "x", Bounds: image.Rect(0, 0, 2, 2)}, cfg.Growth, cfg.Traffic, g, nil); err == nil {
		t.Error("expected an error for missing random state")
	}
}

// TestCompileRules checks pattern validation.
func TestCompileRules(t *testing.T) {
	tests := []struct {
		name string
		rule config.RuleConfig
		ok   bool
	}{
		{"valid", config.RuleConfig{Kind: "house", Chance: 1, Pattern: []string{".S.", "hnh", "..."}}, true},
		{"single cell", config.RuleConfig{Kind: "road", Chance: 1, Pattern: []string{"n"}}, true},
		{"even rows", config.RuleConfig{Kind: "house", Chance: 1, Pattern: []string{"..", ".n"}}, false},
		{"ragged", config.RuleConfig{Kind: "house", Chance: 1, Pattern: []string{"...", ".n", "..."}}, false},
		{"bad symbol", config.RuleConfig{Kind: "house", Chance: 1, Pattern: []string{"...", ".x.", "..."}}, false},
		{"bad kind", config.RuleConfig{Kind: "park", Chance: 1, Pattern: []string{"n"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileRules([]config.RuleConfig{tt.rule})
			if (err == nil) != tt.ok {
				t.Errorf("compileRules error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

// TestRuleRotation checks a one-sided pattern matches on every side.
func TestRuleRotation(t *testing.T) {
	g := NewGrid(image.Rect(0, 0, 9, 9))
	c, _ := newTestCity(t, g, Founding{ID: 1, Name: "R", Pos: image.Pt(4, 0), Radius: 0})
	r, err := compileRule(config.RuleConfig{Kind: "house", Chance: 1, Pattern: []string{"...", ".n.", ".S."}})
	if err != nil {
		t.Fatal(err)
	}
	g.BuildRoad(image.Pt(4, 4))
	for _, d := range directions {
		if p := image.Pt(4, 4).Add(d); !r.matches(c, p) {
			t.Errorf("expected match next to the road at %v", p)
		}
	}
	if r.matches(c, image.Pt(6, 6)) {
		t.Error("unexpected match away from the road")
	}
}
