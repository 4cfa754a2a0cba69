package city

import "image"

// Kind is the use of a city building.
type Kind uint8

const (
	Residential Kind = iota
	Commercial
	Industrial
)

func (k Kind) String() string {
	switch k {
	case Commercial:
		return "commercial"
	case Industrial:
		return "industrial"
	}
	return "residential"
}

// MaxLevel is the highest level renovation reaches.
const MaxLevel = 4

// Building is one constructed tile.
type Building struct {
	Pos   image.Point
	Kind  Kind
	Level int
	Owner Owner
}

func (b *Building) weight() int64 { return int64(b.Level) + 1 }
