package goods

import "fmt"

// MaxCategories bounds the number of routing partitions per station.
const MaxCategories = 16

// Category partitions connexion and path tables.
type Category uint8

const (
	CategoryPassengers Category = 0
	CategoryMail       Category = 1
	// CategoryPiece is the first freight category; bulk, liquid etc follow.
	CategoryPiece Category = 2
)

// Class is the station enablement class of a category.
type Class uint8

const (
	ClassPassengers Class = iota
	ClassMail
	ClassFreight
	NumClasses
)

// Class maps a category to the enablement class it belongs to.
func (c Category) Class() Class {
	switch c {
	case CategoryPassengers:
		return ClassPassengers
	case CategoryMail:
		return ClassMail
	}
	return ClassFreight
}

// IsTraveller reports whether packets of this category give up instead of
// waiting when they have no route (passengers and mail).
func (c Category) IsTraveller() bool { return c.Class() != ClassFreight }

func (c Category) String() string {
	switch c {
	case CategoryPassengers:
		return "passengers"
	case CategoryMail:
		return "mail"
	}
	return fmt.Sprintf("freight-%d", c)
}

// ParseCategory accepts "passengers", "mail" or a numeric index.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "passengers", "pax":
		return CategoryPassengers, nil
	case "mail", "post":
		return CategoryMail, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 || n >= MaxCategories {
		return 0, fmt.Errorf("unknown goods category %q", s)
	}
	return Category(n), nil
}

// CategorySet is a bitmask of categories a service carries.
type CategorySet uint16

// NewCategorySet builds a set from categories.
func NewCategorySet(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s |= 1 << c
	}
	return s
}

// Has reports membership.
func (s CategorySet) Has(c Category) bool { return s&(1<<c) != 0 }

// Each visits members in ascending order.
func (s CategorySet) Each(fn func(Category)) {
	for c := Category(0); c < MaxCategories; c++ {
		if s.Has(c) {
			fn(c)
		}
	}
}

// Type is a concrete kind of goods. Two packets can only merge when their
// type IDs match.
type Type struct {
	ID       uint16
	Name     string
	Category Category
}

var (
	Passengers = Type{ID: 0, Name: "passengers", Category: CategoryPassengers}
	Mail       = Type{ID: 1, Name: "mail", Category: CategoryMail}
)

// Catalog resolves goods type IDs. It is owned by whoever loads the goods
// descriptors; the network holds one.
type Catalog struct {
	types []Type
}

// NewCatalog returns a catalog holding passengers and mail plus extra types.
// Extra types are renumbered in order starting at 2.
func NewCatalog(extra ...Type) *Catalog {
	c := &Catalog{types: []Type{Passengers, Mail}}
	for _, t := range extra {
		c.Add(t.Name, t.Category)
	}
	return c
}

// Add registers a freight type and returns it.
func (c *Catalog) Add(name string, cat Category) Type {
	t := Type{ID: uint16(len(c.types)), Name: name, Category: cat}
	c.types = append(c.types, t)
	return t
}

// Lookup returns the type registered under id.
func (c *Catalog) Lookup(id uint16) (Type, bool) {
	if int(id) >= len(c.types) {
		return Type{}, false
	}
	return c.types[id], true
}

// ByName finds a type by name.
func (c *Catalog) ByName(name string) (Type, bool) {
	for _, t := range c.types {
		if t.Name == name {
			return t, true
		}
	}
	return Type{}, false
}

// Types returns all registered types in ID order.
func (c *Catalog) Types() []Type {
	return append([]Type(nil), c.types...)
}
