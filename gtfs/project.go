package gtfs

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Projection maps feed coordinates linearly onto a tile area, north up,
// keeping a one-tile border free.
type Projection struct {
	bound orb.Bound
	area  image.Rectangle
}

// NewProjection fits the bounding box of every stop of f into area.
func NewProjection(f *Feed, area image.Rectangle) Projection {
	pts := make(orb.MultiPoint, 0, len(f.stops))
	for _, id := range f.StopIDs() {
		pts = append(pts, f.stops[id].Point)
	}
	return Projection{bound: pts.Bound(), area: area}
}

func (p Projection) Bound() orb.Bound { return p.bound }

// Tile returns the tile of a [lon, lat] point.
func (p Projection) Tile(pt orb.Point) image.Point {
	inner := p.area.Inset(1)
	if inner.Empty() {
		inner = p.area
	}
	fx := fraction(pt.Lon(), p.bound.Min.Lon(), p.bound.Max.Lon())
	fy := 1 - fraction(pt.Lat(), p.bound.Min.Lat(), p.bound.Max.Lat())
	x := inner.Min.X + int(math.Round(fx*float64(inner.Dx()-1)))
	y := inner.Min.Y + int(math.Round(fy*float64(inner.Dy()-1)))
	return image.Pt(x, y)
}

func fraction(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return min(max((v-lo)/(hi-lo), 0), 1)
}

// travelMinutes is the time to cover the great-circle distance between
// two points at speed km/h, rounded up.
func travelMinutes(a, b orb.Point, speedKMH float64) uint32 {
	if speedKMH <= 0 {
		return 0
	}
	km := geo.Distance(a, b) / 1000
	return uint32(math.Ceil(km / speedKMH * 60))
}
