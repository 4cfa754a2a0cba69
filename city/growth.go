package city

import (
	"fmt"
	"image"

	"github.com/theoremus-urban-solutions/haltnet/diag"
)

// Growth factors compared each growth step.
const (
	FactorPassengers = iota
	FactorMail
	FactorGoods
	FactorPower
	NumGrowthFactors
)

type factor struct {
	demand, supplied int64
}

// factors reads the running month's demand and supply per growth factor.
func (c *City) factors() [NumGrowthFactors]factor {
	m := &c.month[0]
	return [NumGrowthFactors]factor{
		FactorPassengers: {demand: m[HistPasGenerated], supplied: m[HistPasTransported] + m[HistPasWalked]},
		FactorMail:       {demand: m[HistMailGenerated], supplied: m[HistMailTransported]},
		FactorGoods:      {demand: m[HistGoodsNeeded], supplied: m[HistGoodsReceived]},
		FactorPower:      {demand: m[HistPowerNeeded], supplied: m[HistPowerReceived]},
	}
}

// GrowthBase consumes the flows since the previous call and returns the
// weighted satisfaction with rprec fractional bits, computed with cprec
// bits. Each factor's ratio is clamped to [0, 1]; a factor without demand
// contributes nothing.
func (c *City) GrowthBase(rprec, cprec uint) int64 {
	if cprec < rprec {
		cprec = rprec
	}
	w := c.growth.Weights
	weights := [NumGrowthFactors]int64{
		int64(w.Passengers), int64(w.Mail), int64(w.Goods), int64(w.Power),
	}
	cur := c.factors()
	var acc int64
	for i := range cur {
		had := cur[i].supplied - c.previous[i].supplied
		want := cur[i].demand - c.previous[i].demand
		c.previous[i] = cur[i]
		if want <= 0 {
			continue
		}
		had = min(max(had, 0), want)
		acc += (had << cprec) / want * weights[i]
	}
	return acc >> (cprec - rprec)
}

// Step runs the periodic growth step when tick is due.
func (c *City) Step(tick uint64) {
	if c.growth.StepInterval > 0 && tick%uint64(c.growth.StepInterval) == 0 {
		c.stepGrowth()
	}
}

// stepGrowth converts satisfaction into growth pressure, dampened by
// congestion, and builds for every whole resident gained.
func (c *City) stepGrowth() {
	rprec := c.growth.ReturnPrecision
	base := c.GrowthBase(rprec, c.growth.ComputePrecision)
	g := (base << (32 - rprec)) * int64(c.growth.Scale) / 100
	damp := c.Congestion() * int64(c.growth.CongestionDampening) / 100
	g = g * (100 - min(damp, 100)) / 100
	c.unsupplied += g
	if whole := c.unsupplied >> 32; whole > 0 {
		c.unsupplied -= whole << 32
		c.ChangeSize(whole)
	}
	c.refreshCounters()
}

// UnsuppliedGrowth returns the fractional growth pressure, 2^32 per resident.
func (c *City) UnsuppliedGrowth() int64 { return c.unsupplied }

// ChangeSize adds or removes citizens. Every new citizen may trigger up
// to growth.BuildTries builds while the population outgrows homes and
// jobs. When a build finds no site even after renovation and border
// growth, the citizens still to come in this call are dropped.
func (c *City) ChangeSize(delta int64) {
	if delta < 0 {
		c.bev = max(c.bev+delta, 0)
		c.refreshCounters()
		return
	}
	for ; delta > 0; delta-- {
		c.bev++
		for i := 0; i < c.growth.BuildTries && 2*c.bev > c.won+c.arb+100; i++ {
			if !c.build() {
				c.diag.Add(diag.ConstructionFailed, fmt.Sprintf("%s: %d citizens dropped", c.name, delta-1))
				c.refreshCounters()
				return
			}
		}
	}
	c.refreshCounters()
}

// build places or upgrades one building; roads are extended
// opportunistically on the way.
func (c *City) build() bool {
	if c.rng.IntN(100) < 30 {
		c.buildRoad()
	}
	kind := c.wantedKind()
	if c.buildHouse(kind) || c.renovate(kind) {
		return true
	}
	start := c.rng.IntN(4)
	grown := false
	for i := 0; i < 4; i++ {
		if !c.enlarge(directions[(start+i)%4]) {
			continue
		}
		grown = true
		c.buildRoad()
		if c.buildHouse(kind) {
			return true
		}
	}
	if !grown {
		c.diag.Add(diag.BorderExhausted, c.name)
	}
	return false
}

func (c *City) wantedKind() Kind {
	if c.Homeless() >= c.Unemployed() {
		return Residential
	}
	var com, ind int64
	for _, b := range c.buildings {
		switch b.Kind {
		case Commercial:
			com += b.weight()
		case Industrial:
			ind += b.weight()
		}
	}
	if com <= ind {
		return Commercial
	}
	return Industrial
}

// bestSite scores every free tile in bounds against the rules of one
// kind. Ties go to a random jitter drawn per tile.
func (c *City) bestSite(kind ruleKind) (image.Point, bool) {
	var best image.Point
	bestScore := 0
	for y := c.bounds.Min.Y; y < c.bounds.Max.Y; y++ {
		for x := c.bounds.Min.X; x < c.bounds.Max.X; x++ {
			p := image.Pt(x, y)
			if !c.tileIs(p, 'n') {
				continue
			}
			score := 0
			for _, r := range c.rules {
				if r.kind == kind && r.chance > score && r.matches(c, p) {
					score = r.chance
				}
			}
			if score == 0 {
				continue
			}
			if kind == ruleHouse {
				score += c.growth.ClusterFactor * c.neighbours(p)
			}
			score = score*16 + c.rng.IntN(16)
			if score > bestScore {
				best, bestScore = p, score
			}
		}
	}
	return best, bestScore > 0
}

func (c *City) neighbours(p image.Point) int {
	n := 0
	for _, d := range directions {
		if c.world.Tile(p.Add(d)).Owner == c.owner {
			n++
		}
	}
	return n
}

func (c *City) buildRoad() bool {
	p, ok := c.bestSite(ruleRoad)
	return ok && c.world.BuildRoad(p)
}

func (c *City) buildHouse(kind Kind) bool {
	p, ok := c.bestSite(ruleHouse)
	if !ok || !c.world.Place(p, c.owner) {
		return false
	}
	c.addBuilding(&Building{Pos: p, Kind: kind, Owner: c.owner})
	return true
}

func (c *City) addBuilding(b *Building) {
	c.buildings = append(c.buildings, b)
	c.byPos[b.Pos] = b
	c.credit(b.Kind, b.weight())
}

func (c *City) credit(kind Kind, weight int64) {
	v := weight * int64(c.growth.PopulationPerLevel)
	if kind == Residential {
		c.won += v
	} else {
		c.arb += v
	}
}

// renovate raises the lowest building of a kind by one level.
func (c *City) renovate(kind Kind) bool {
	var pick *Building
	for _, b := range c.buildings {
		if b.Kind == kind && b.Level < MaxLevel && (pick == nil || b.Level < pick.Level) {
			pick = b
		}
	}
	if pick == nil {
		return false
	}
	pick.Level++
	c.credit(kind, 1)
	return true
}

// enlarge grows the bounds by one row or column in direction d when the
// new strip lies on the map and no other city claims it.
func (c *City) enlarge(d image.Point) bool {
	r := c.bounds
	var strip image.Rectangle
	switch d {
	case image.Pt(0, -1):
		strip = image.Rect(r.Min.X, r.Min.Y-1, r.Max.X, r.Min.Y)
		r.Min.Y--
	case image.Pt(1, 0):
		strip = image.Rect(r.Max.X, r.Min.Y, r.Max.X+1, r.Max.Y)
		r.Max.X++
	case image.Pt(0, 1):
		strip = image.Rect(r.Min.X, r.Max.Y, r.Max.X, r.Max.Y+1)
		r.Max.Y++
	default:
		strip = image.Rect(r.Min.X-1, r.Min.Y, r.Min.X, r.Max.Y)
		r.Min.X--
	}
	if !r.In(c.world.Area()) || c.world.ClaimedByOther(c.id, strip) {
		return false
	}
	c.bounds = r
	c.world.Claim(c.id, r)
	return true
}
