package city

import "fmt"

// OwnerKind tells which variant an Owner holds.
type OwnerKind uint8

const (
	OwnerNone OwnerKind = iota
	OwnerCity
	OwnerFactory
)

// Owner is the city or factory a building belongs to.
type Owner struct {
	kind OwnerKind
	id   uint64
}

// CityOwner returns the owner tag of a city.
func CityOwner(id uint64) Owner { return Owner{kind: OwnerCity, id: id} }

// FactoryOwner returns the owner tag of a factory.
func FactoryOwner(id uint64) Owner { return Owner{kind: OwnerFactory, id: id} }

// RestoreOwner rebuilds a persisted tag; unknown kinds become OwnerNone.
func RestoreOwner(kind OwnerKind, id uint64) Owner {
	switch kind {
	case OwnerCity, OwnerFactory:
		return Owner{kind: kind, id: id}
	}
	return Owner{}
}

func (o Owner) Kind() OwnerKind { return o.kind }
func (o Owner) ID() uint64 { return o.id }
func (o Owner) IsZero() bool { return o.kind == OwnerNone }

// City returns the city id when the owner is a city.
func (o Owner) City() (uint64, bool) { return o.id, o.kind == OwnerCity }

// Factory returns the factory id when the owner is a factory.
func (o Owner) Factory() (uint64, bool) { return o.id, o.kind == OwnerFactory }

func (o Owner) String() string {
	switch o.kind {
	case OwnerCity:
		return fmt.Sprintf("city %d", o.id)
	case OwnerFactory:
		return fmt.Sprintf("factory %d", o.id)
	}
	return "none"
}
