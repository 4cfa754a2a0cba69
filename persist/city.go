package persist

import (
	"image"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/theoremus-urban-solutions/haltnet/city"
)

const cityHistorySize = city.MaxMonths * city.NumHistory

// EncodeCity writes one city.
func EncodeCity(st city.State) []byte {
	var e encoder
	writeCity(&e, st)
	return e.b
}

// DecodeCity reads a city written by EncodeCity.
func DecodeCity(b []byte) (city.State, error) {
	return readCity(b)
}

func writeCity(e *encoder, st city.State) {
	e.putUint(1, st.ID)
	e.putString(2, st.Name)
	e.putInt(3, int64(st.X))
	e.putInt(4, int64(st.Y))
	r := st.Bounds
	e.putPacked(5, []int64{int64(r.Min.X), int64(r.Min.Y), int64(r.Max.X), int64(r.Max.Y)})
	e.putInt(6, st.Bev)
	e.putInt(7, st.Arb)
	e.putInt(8, st.Won)
	e.putInt(9, st.Unsupplied)
	month := make([]int64, 0, cityHistorySize)
	for _, m := range st.Month {
		month = append(month, m[:]...)
	}
	e.putPacked(10, month)
	year := make([]int64, 0, cityHistorySize)
	for _, y := range st.Year {
		year = append(year, y[:]...)
	}
	e.putPacked(11, year)
	e.putUint(12, uint64(st.MonthsElapsed))
	prev := make([]int64, 0, 2*city.NumGrowthFactors)
	for _, p := range st.Previous {
		prev = append(prev, p[0], p[1])
	}
	e.putPacked(13, prev)
	e.putInt(14, st.Incoming)
	e.putInt(15, st.Outgoing)
	for _, b := range st.Buildings {
		e.putMessage(16, func(e *encoder) {
			e.putInt(1, int64(b.X))
			e.putInt(2, int64(b.Y))
			e.putUint(3, uint64(b.Kind))
			e.putInt(4, int64(b.Level))
			e.putUint(5, uint64(b.OwnerKind))
			e.putUint(6, b.OwnerID)
		})
	}
	for _, l := range st.Links {
		e.putMessage(17, func(e *encoder) {
			e.putUint(1, uint64(l.Kind))
			e.putUint(2, l.ID)
			e.putUint(3, uint64(l.Tiles))
		})
	}
	e.putBytes(18, st.RNG)
}

func readCity(b []byte) (city.State, error) {
	var st city.State
	err := walk("city", b, func(num protowire.Number, v uint64, data []byte) error {
		switch num {
		case 1:
			st.ID = v
		case 2:
			st.Name = string(data)
		case 3:
			st.X = int(sint(v))
		case 4:
			st.Y = int(sint(v))
		case 5:
			r, err := unpackExact("city bounds", data, 4)
			if err != nil {
				return err
			}
			st.Bounds = image.Rect(int(r[0]), int(r[1]), int(r[2]), int(r[3]))
		case 6:
			st.Bev = sint(v)
		case 7:
			st.Arb = sint(v)
		case 8:
			st.Won = sint(v)
		case 9:
			st.Unsupplied = sint(v)
		case 10, 11:
			vs, err := unpackExact("city history", data, cityHistorySize)
			if err != nil {
				return err
			}
			dst := &st.Month
			if num == 11 {
				dst = &st.Year
			}
			for i, v := range vs {
				dst[i/city.NumHistory][i%city.NumHistory] = v
			}
		case 12:
			st.MonthsElapsed = uint32(v)
		case 13:
			vs, err := unpackExact("city growth factors", data, 2*city.NumGrowthFactors)
			if err != nil {
				return err
			}
			for i := range st.Previous {
				st.Previous[i] = [2]int64{vs[2*i], vs[2*i+1]}
			}
		case 14:
			st.Incoming = sint(v)
		case 15:
			st.Outgoing = sint(v)
		case 16:
			bs, err := readBuilding(data)
			if err != nil {
				return err
			}
			st.Buildings = append(st.Buildings, bs)
		case 17:
			ls, err := readLink(data)
			if err != nil {
				return err
			}
			st.Links = append(st.Links, ls)
		case 18:
			st.RNG = append([]byte(nil), data...)
		}
		return nil
	})
	return st, err
}

func readBuilding(b []byte) (city.BuildingState, error) {
	var bs city.BuildingState
	err := walk("building", b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			bs.X = int(sint(v))
		case 2:
			bs.Y = int(sint(v))
		case 3:
			bs.Kind = uint8(v)
		case 4:
			bs.Level = int(sint(v))
		case 5:
			bs.OwnerKind = uint8(v)
		case 6:
			bs.OwnerID = v
		}
		return nil
	})
	return bs, err
}

func readLink(b []byte) (city.LinkState, error) {
	var ls city.LinkState
	err := walk("road link", b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			ls.Kind = uint8(v)
		case 2:
			ls.ID = v
		case 3:
			ls.Tiles = uint32(v)
		}
		return nil
	})
	return ls, err
}
