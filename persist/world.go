package persist

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/theoremus-urban-solutions/haltnet/config"
	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/sim"
)

// Version is the format written by EncodeWorld.
const Version = 1

// EncodeWorld writes a whole world.
func EncodeWorld(st sim.State) []byte {
	var e encoder
	e.putUint(15, Version)
	e.putString(1, st.Name)
	e.putUint(2, st.Seed)
	e.putUint(3, st.Tick)
	e.putInt(4, int64(st.Width))
	e.putInt(5, int64(st.Height))
	for _, t := range st.Goods {
		e.putMessage(6, func(e *encoder) {
			e.putUint(1, uint64(t.ID))
			e.putString(2, t.Name)
			e.putUint(3, uint64(t.Category))
		})
	}
	roads := make([]int64, 0, 2*len(st.Roads))
	for _, p := range st.Roads {
		roads = append(roads, int64(p.X), int64(p.Y))
	}
	e.putPacked(7, roads)
	e.putMessage(8, func(e *encoder) { writeNetwork(e, st.Network) })
	for _, c := range st.Cities {
		e.putMessage(9, func(e *encoder) { writeCity(e, c) })
	}
	for _, d := range st.Demand {
		e.putMessage(10, func(e *encoder) {
			e.putUint(1, d.City)
			e.putInt(2, d.Passengers)
			e.putInt(3, d.Mail)
		})
	}
	e.putBytes(11, st.RNG)
	return e.b
}

// DecodeWorld reads a world written by EncodeWorld.
func DecodeWorld(b []byte) (sim.State, error) {
	var st sim.State
	var version uint64
	err := walk("world", b, func(num protowire.Number, v uint64, data []byte) error {
		switch num {
		case 15:
			version = v
		case 1:
			st.Name = string(data)
		case 2:
			st.Seed = v
		case 3:
			st.Tick = v
		case 4:
			st.Width = int(sint(v))
		case 5:
			st.Height = int(sint(v))
		case 6:
			t, err := readGoodsType(data)
			if err != nil {
				return err
			}
			st.Goods = append(st.Goods, t)
		case 7:
			vs, err := unpack("roads", data)
			if err != nil {
				return err
			}
			if len(vs)%2 != 0 {
				return corrupt("roads", fmt.Errorf("odd coordinate count %d", len(vs)))
			}
			for i := 0; i < len(vs); i += 2 {
				st.Roads = append(st.Roads, image.Pt(int(vs[i]), int(vs[i+1])))
			}
		case 8:
			n, err := readNetwork(data)
			if err != nil {
				return err
			}
			st.Network = n
		case 9:
			c, err := readCity(data)
			if err != nil {
				return err
			}
			st.Cities = append(st.Cities, c)
		case 10:
			d, err := readDemand(data)
			if err != nil {
				return err
			}
			st.Demand = append(st.Demand, d)
		case 11:
			st.RNG = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return sim.State{}, err
	}
	if version == 0 || version > Version {
		return sim.State{}, fmt.Errorf("decode world: %w: %d", ErrVersion, version)
	}
	return st, nil
}

func readGoodsType(b []byte) (goods.Type, error) {
	var t goods.Type
	err := walk("goods type", b, func(num protowire.Number, v uint64, data []byte) error {
		switch num {
		case 1:
			t.ID = uint16(v)
		case 2:
			t.Name = string(data)
		case 3:
			if v >= goods.MaxCategories {
				return corrupt("goods type", fmt.Errorf("category %d", v))
			}
			t.Category = goods.Category(v)
		}
		return nil
	})
	return t, err
}

func readDemand(b []byte) (sim.CityDemand, error) {
	var d sim.CityDemand
	err := walk("demand", b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			d.City = v
		case 2:
			d.Passengers = sint(v)
		case 3:
			d.Mail = sint(v)
		}
		return nil
	})
	return d, err
}

// Save writes the world to path, replacing it atomically.
func Save(w *sim.World, path string) error {
	st, err := w.Export()
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	data := EncodeWorld(st)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	log.Printf("Saved world %s at tick %d (%d bytes)", st.Name, st.Tick, len(data))
	return nil
}

// Load reads a world saved by Save and restores it with the tuning in cfg.
// Diagnostics recorded while restoring are logged.
func Load(path string, cfg config.AppConfig) (*sim.World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	st, err := DecodeWorld(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	w, err := sim.Restore(st, cfg)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	w.Diagnostics().LogAll("load " + filepath.Base(path))
	log.Printf("Loaded world %s at tick %d: %d cities, %d stations", st.Name, st.Tick, len(st.Cities), len(st.Network.Stations))
	return w, nil
}
