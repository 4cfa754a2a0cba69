package city

import (
	"fmt"
	"image"
	"math/rand/v2"

	"github.com/bluele/gcache"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/diag"
)

// History kinds, one column per statistic in the month and year rings.
const (
	HistCitizens = iota
	HistJobs
	HistVisitorDemand
	HistGrowth
	HistBuilding
	HistCitycars
	HistPasTransported
	HistPasGenerated
	HistPasWalked
	HistMailTransported
	HistMailGenerated
	HistGoodsReceived
	HistGoodsNeeded
	HistPowerReceived
	HistPowerNeeded
	HistCongestion
	NumHistory
)

var historyNames = [NumHistory]string{
	"citizens", "jobs", "visitor_demand", "growth", "buildings", "citycars",
	"pas_transported", "pas_generated", "pas_walked", "mail_transported",
	"mail_generated", "goods_received", "goods_needed", "power_received",
	"power_needed", "congestion",
}

// HistoryName returns the report name of a history kind.
func HistoryName(kind int) string {
	if kind < 0 || kind >= NumHistory {
		return ""
	}
	return historyNames[kind]
}

const (
	MaxMonths = 12
	MaxYears  = 12
)

// Founding describes a new city.
type Founding struct {
	ID         uint64
	Name       string
	Pos        image.Point
	Radius     int
	Population int64
	Seed       uint64
}

// City is one settlement.
type City struct {
	id     uint64
	name   string
	pos    image.Point
	bounds image.Rectangle
	owner  Owner

	growth  config.GrowthConfig
	traffic config.TrafficConfig
	world   World
	rules   []rule
	pcg     *rand.PCG
	rng     *rand.Rand
	diag    *diag.Aggregator

	// bev citizens, arb with a job, won with a home; growth pressure only
	bev, arb, won int64
	unsupplied    int64

	month         [MaxMonths][NumHistory]int64
	year          [MaxYears][NumHistory]int64
	monthsElapsed uint32
	previous      [NumGrowthFactors]factor

	incoming, outgoing int64
	routeBusy          bool
	links              map[targetKey]uint32
	routes             gcache.Cache

	buildings []*Building
	byPos     map[image.Point]*Building
}

// New founds a city, lays its first road and grows it to the founding
// population.
func New(f Founding, growth config.GrowthConfig, traffic config.TrafficConfig, world World, d *diag.Aggregator) (*City, error) {
	c, err := newCity(f.ID, f.Name, f.Pos, growth, traffic, world, d, rand.NewPCG(f.Seed, f.ID))
	if err != nil {
		return nil, err
	}
	r := f.Radius
	if r < 1 {
		r = 1
	}
	c.bounds = image.Rect(f.Pos.X-r, f.Pos.Y-r, f.Pos.X+r+1, f.Pos.Y+r+1).Intersect(world.Area())
	if c.bounds.Empty() {
		return nil, fmt.Errorf("found city %q: position %v outside the map", f.Name, f.Pos)
	}
	if world.ClaimedByOther(c.id, c.bounds) {
		return nil, fmt.Errorf("found city %q: bounds %v overlap another city", f.Name, c.bounds)
	}
	world.Claim(c.id, c.bounds)
	for x := c.bounds.Min.X; x < c.bounds.Max.X; x++ {
		world.BuildRoad(image.Pt(x, f.Pos.Y))
	}
	if f.Population > 0 {
		c.ChangeSize(f.Population)
	}
	c.refreshCounters()
	return c, nil
}

func newCity(id uint64, name string, pos image.Point, growth config.GrowthConfig, traffic config.TrafficConfig, world World, d *diag.Aggregator, pcg *rand.PCG) (*City, error) {
	if world == nil {
		return nil, fmt.Errorf("city %q: nil world", name)
	}
	rules, err := compileRules(growth.Rules)
	if err != nil {
		return nil, fmt.Errorf("city %q: %w", name, err)
	}
	if growth.PopulationPerLevel <= 0 {
		growth.PopulationPerLevel = config.Default().Growth.PopulationPerLevel
	}
	if growth.BuildTries <= 0 {
		growth.BuildTries = config.Default().Growth.BuildTries
	}
	if traffic.MaxTargets <= 0 {
		traffic.MaxTargets = config.Default().Traffic.MaxTargets
	}
	if traffic.CarsPerTile <= 0 {
		traffic.CarsPerTile = config.Default().Traffic.CarsPerTile
	}
	return &City{
		id:      id,
		name:    name,
		pos:     pos,
		owner:   CityOwner(id),
		growth:  growth,
		traffic: traffic,
		world:   world,
		rules:   rules,
		pcg:     pcg,
		rng:     rand.New(pcg),
		diag:    d,
		links:   make(map[targetKey]uint32),
		routes:  gcache.New(traffic.MaxTargets * 8).LRU().Build(),
		byPos:   make(map[image.Point]*Building),
	}, nil
}

func (c *City) ID() uint64              { return c.id }
func (c *City) Name() string            { return c.name }
func (c *City) Pos() image.Point        { return c.pos }
func (c *City) Bounds() image.Rectangle { return c.bounds }
func (c *City) Owner() Owner            { return c.owner }

// SetDiagnostics replaces the diagnostics sink.
func (c *City) SetDiagnostics(d *diag.Aggregator) { c.diag = d }

// Population is the authoritative citizen count: building weights plus
// half of the growth pressure not yet housed or employed.
func (c *City) Population() int64 {
	var weight int64
	for _, b := range c.buildings {
		weight += b.weight()
	}
	pop := weight*int64(c.growth.PopulationPerLevel)/2 + (2*c.bev-c.arb-c.won)/2
	return max(pop, 0)
}

// Jobs returns the workplaces offered by commercial and industrial buildings.
func (c *City) Jobs() int64 { return c.arb }

// VisitorDemand is how many visitors commercial buildings attract.
func (c *City) VisitorDemand() int64 {
	var weight int64
	for _, b := range c.buildings {
		if b.Kind == Commercial {
			weight += b.weight()
		}
	}
	return weight * int64(c.growth.PopulationPerLevel)
}

func (c *City) Unemployed() int64 { return c.bev - c.arb }
func (c *City) Homeless() int64 { return c.bev - c.won }

// Congestion returns last month's congestion in percent.
func (c *City) Congestion() int64 { return c.month[0][HistCongestion] }

// HistoryMonth returns a monthly figure; month 0 is the running month.
func (c *City) HistoryMonth(month, kind int) int64 {
	if month < 0 || month >= MaxMonths || kind < 0 || kind >= NumHistory {
		return 0
	}
	return c.month[month][kind]
}

// HistoryYear returns a yearly figure; year 0 is the running year.
func (c *City) HistoryYear(year, kind int) int64 {
	if year < 0 || year >= MaxYears || kind < 0 || kind >= NumHistory {
		return 0
	}
	return c.year[year][kind]
}

// Growth is the smoothed growth of the last three months.
func (c *City) Growth() int64 {
	return c.month[0][HistGrowth]*5 + c.month[1][HistGrowth]*4 + c.month[2][HistGrowth]
}

// Buildings returns copies of the city's buildings in construction order.
func (c *City) Buildings() []Building {
	out := make([]Building, len(c.buildings))
	for i, b := range c.buildings {
		out[i] = *b
	}
	return out
}

// IncomingPrivateCars returns this month's cars arriving from other cities.
func (c *City) IncomingPrivateCars() int64 { return c.incoming }

// OutgoingPrivateCars returns this month's cars leaving for other targets.
func (c *City) OutgoingPrivateCars() int64 { return c.outgoing }

func (c *City) addHistory(kind int, v int64) {
	c.month[0][kind] += v
	c.year[0][kind] += v
}

func (c *City) AddTransportedPassengers(n int64) { c.addHistory(HistPasTransported, n) }
func (c *City) AddWalkingPassengers(n int64)     { c.addHistory(HistPasWalked, n) }
func (c *City) AddGeneratedPassengers(n int64)   { c.addHistory(HistPasGenerated, n) }
func (c *City) AddTransportedMail(n int64)       { c.addHistory(HistMailTransported, n) }
func (c *City) AddGeneratedMail(n int64)         { c.addHistory(HistMailGenerated, n) }
func (c *City) AddGoodsReceived(n int64)         { c.addHistory(HistGoodsReceived, n) }
func (c *City) AddGoodsNeeded(n int64)           { c.addHistory(HistGoodsNeeded, n) }
func (c *City) AddPower(n int64)                 { c.addHistory(HistPowerReceived, n) }
func (c *City) AddPowerDemand(n int64)           { c.addHistory(HistPowerNeeded, n) }

// refreshCounters copies the snapshot statistics into the running month.
func (c *City) refreshCounters() {
	snap := [...]struct {
		kind int
		v    int64
	}{
		{HistCitizens, c.Population()},
		{HistJobs, c.Jobs()},
		{HistVisitorDemand, c.VisitorDemand()},
		{HistBuilding, int64(len(c.buildings))},
	}
	for _, s := range snap {
		c.month[0][s.kind] = s.v
		c.year[0][s.kind] = s.v
	}
}

// NewMonth closes the running month: growth-factor snapshots first, then
// congestion, then the history rings.
func (c *City) NewMonth() {
	cur := c.factors()
	for i := range c.previous {
		c.previous[i].demand -= cur[i].demand
		c.previous[i].supplied -= cur[i].supplied
	}

	c.refreshCounters()
	congestion := c.calcCongestion()
	c.month[0][HistGrowth] = c.month[0][HistCitizens] - c.month[1][HistCitizens]
	c.year[0][HistGrowth] = c.year[0][HistCitizens] - c.year[1][HistCitizens]

	for m := MaxMonths - 1; m > 0; m-- {
		c.month[m] = c.month[m-1]
	}
	c.month[0] = [NumHistory]int64{}
	c.monthsElapsed++
	if c.monthsElapsed%12 == 0 {
		for y := MaxYears - 1; y > 0; y-- {
			c.year[y] = c.year[y-1]
		}
		c.year[0] = [NumHistory]int64{}
	}
	c.refreshCounters()
	c.month[0][HistCongestion] = congestion
	c.year[0][HistCongestion] = congestion
	c.incoming, c.outgoing = 0, 0
}

// calcCongestion weighs the private share of traffic by how full the
// city's roads are.
func (c *City) calcCongestion() int64 {
	private := c.incoming + c.outgoing
	public := c.month[0][HistPasTransported]
	if private <= 0 {
		return 0
	}
	share := private * 100 / (private + max(public, 0))
	capacity := int64(c.roadTiles()) * int64(c.traffic.CarsPerTile)
	if capacity <= 0 {
		return share
	}
	return share * min(private, capacity) / capacity
}

func (c *City) roadTiles() int {
	n := 0
	for y := c.bounds.Min.Y; y < c.bounds.Max.Y; y++ {
		for x := c.bounds.Min.X; x < c.bounds.Max.X; x++ {
			if c.world.Tile(image.Pt(x, y)).Road {
				n++
			}
		}
	}
	return n
}
