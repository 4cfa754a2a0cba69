package city

import (
	"fmt"
	"image"

	"github.com/theoremus-urban-solutions/haltnet/config"
)

type ruleKind uint8

const (
	ruleHouse ruleKind = iota
	ruleRoad
)

type cell struct {
	off  image.Point
	want byte
}

// rule is a compiled construction pattern, offsets relative to the
// pattern centre.
type rule struct {
	kind   ruleKind
	chance int
	cells  []cell
}

// DefaultRules are used when the configuration names none.
var DefaultRules = []config.RuleConfig{
	{Kind: "house", Chance: 12, Pattern: []string{"...", ".n.", ".S."}},
	{Kind: "house", Chance: 8, Pattern: []string{".H.", "Hn.", ".S."}},
	{Kind: "house", Chance: 4, Pattern: []string{"...", "SnS", "..."}},
	{Kind: "road", Chance: 10, Pattern: []string{".h.", "hnh", ".S."}},
	{Kind: "road", Chance: 6, Pattern: []string{"...", "HnH", ".S."}},
}

func compileRules(cfgs []config.RuleConfig) ([]rule, error) {
	if len(cfgs) == 0 {
		cfgs = DefaultRules
	}
	out := make([]rule, 0, len(cfgs))
	for i, rc := range cfgs {
		r, err := compileRule(rc)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func compileRule(rc config.RuleConfig) (rule, error) {
	r := rule{chance: rc.Chance}
	switch rc.Kind {
	case "house":
		r.kind = ruleHouse
	case "road":
		r.kind = ruleRoad
	default:
		return r, fmt.Errorf("unknown kind %q", rc.Kind)
	}
	if len(rc.Pattern) == 0 {
		return r, fmt.Errorf("empty pattern")
	}
	h, w := len(rc.Pattern), len(rc.Pattern[0])
	if h%2 == 0 || w%2 == 0 {
		return r, fmt.Errorf("pattern must have odd dimensions, got %dx%d", w, h)
	}
	centre := image.Pt(w/2, h/2)
	for y, row := range rc.Pattern {
		if len(row) != w {
			return r, fmt.Errorf("row %d has length %d, want %d", y, len(row), w)
		}
		for x := 0; x < w; x++ {
			ch := row[x]
			switch ch {
			case '.':
				continue
			case 'S', 's', 'H', 'h', 'n', 'U':
			default:
				return r, fmt.Errorf("unknown pattern symbol %q", ch)
			}
			r.cells = append(r.cells, cell{off: image.Pt(x, y).Sub(centre), want: ch})
		}
	}
	return r, nil
}

// rotate turns an offset by quarter turns.
func rotate(p image.Point, quarter int) image.Point {
	switch quarter & 3 {
	case 1:
		return image.Pt(-p.Y, p.X)
	case 2:
		return image.Pt(-p.X, -p.Y)
	case 3:
		return image.Pt(p.Y, -p.X)
	}
	return p
}

// matches reports whether the pattern fits at p in any of four rotations.
func (r rule) matches(c *City, p image.Point) bool {
	for q := 0; q < 4; q++ {
		ok := true
		for _, cl := range r.cells {
			if !c.tileIs(p.Add(rotate(cl.off, q)), cl.want) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (c *City) tileIs(p image.Point, want byte) bool {
	t := c.world.Tile(p)
	switch want {
	case 'S':
		return t.Road
	case 's':
		return !t.Road
	case 'H':
		return t.Owner == c.owner
	case 'h':
		return t.Owner != c.owner
	case 'n':
		return t.Buildable && !t.Road && t.Owner.IsZero()
	case 'U':
		return !t.Buildable
	}
	return true
}
