package persist

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/theoremus-urban-solutions/haltnet/goods"
	"github.com/theoremus-urban-solutions/haltnet/halt"
)

const historySize = halt.MaxMonths * halt.NumCostKinds

// EncodeStation writes one station with its waiting goods.
func EncodeStation(st halt.StationState) []byte {
	var e encoder
	writeStation(&e, st)
	return e.b
}

// DecodeStation reads a station written by EncodeStation.
func DecodeStation(b []byte) (halt.StationState, error) {
	return readStation(b)
}

func writeStation(e *encoder, st halt.StationState) {
	e.putUint(1, st.ID)
	e.putString(2, st.Name)
	e.putInt(3, int64(st.X))
	e.putInt(4, int64(st.Y))
	e.putUint(5, uint64(st.Flags))
	caps := make([]int64, len(st.Capacity))
	for i, c := range st.Capacity {
		caps[i] = int64(c)
	}
	e.putPacked(6, caps)
	hist := make([]int64, 0, historySize)
	for _, m := range st.History {
		hist = append(hist, m[:]...)
	}
	e.putPacked(7, hist)
	for _, p := range st.Waiting {
		e.putMessage(8, func(e *encoder) { writePacket(e, p) })
	}
	for _, w := range st.Waits {
		e.putMessage(9, func(e *encoder) { writeWaits(e, w) })
	}
}

func readStation(b []byte) (halt.StationState, error) {
	var st halt.StationState
	err := walk("station", b, func(num protowire.Number, v uint64, data []byte) error {
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
			st.Flags = uint8(v)
		case 6:
			caps, err := unpackExact("station capacity", data, int(goods.NumClasses))
			if err != nil {
				return err
			}
			for i, c := range caps {
				st.Capacity[i] = uint32(c)
			}
		case 7:
			hist, err := unpackExact("station history", data, historySize)
			if err != nil {
				return err
			}
			for i, v := range hist {
				st.History[i/halt.NumCostKinds][i%halt.NumCostKinds] = v
			}
		case 8:
			p, err := readPacket(data)
			if err != nil {
				return err
			}
			st.Waiting = append(st.Waiting, p)
		case 9:
			w, err := readWaits(data)
			if err != nil {
				return err
			}
			st.Waits = append(st.Waits, w)
		}
		return nil
	})
	return st, err
}

func writeWaits(e *encoder, w halt.WaitState) {
	e.putUint(1, uint64(w.Category))
	e.putUint(2, w.Target)
	samples := make([]int64, len(w.Samples))
	for i, v := range w.Samples {
		samples[i] = int64(v)
	}
	e.putPacked(3, samples)
}

func readWaits(b []byte) (halt.WaitState, error) {
	var w halt.WaitState
	err := walk("waiting times", b, func(num protowire.Number, v uint64, data []byte) error {
		switch num {
		case 1:
			w.Category = uint8(v)
		case 2:
			w.Target = v
		case 3:
			vs, err := unpack("waiting times", data)
			if err != nil {
				return err
			}
			for _, s := range vs {
				w.Samples = append(w.Samples, uint16(s))
			}
		}
		return nil
	})
	return w, err
}

func writePacket(e *encoder, p halt.PacketState) {
	e.putUint(1, uint64(p.TypeID))
	e.putUint(2, uint64(p.Amount))
	e.putUint(3, p.Origin)
	e.putUint(4, p.Destination)
	e.putUint(5, p.NextHop)
	e.putUint(6, uint64(p.SourceKind))
	e.putUint(7, p.SourceID)
	e.putUint(8, p.Enqueued)
	e.putUint(9, uint64(p.Retries))
}

func readPacket(b []byte) (halt.PacketState, error) {
	var p halt.PacketState
	err := walk("packet", b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			p.TypeID = uint16(v)
		case 2:
			p.Amount = uint32(v)
		case 3:
			p.Origin = v
		case 4:
			p.Destination = v
		case 5:
			p.NextHop = v
		case 6:
			p.SourceKind = uint8(v)
		case 7:
			p.SourceID = v
		case 8:
			p.Enqueued = v
		case 9:
			p.Retries = uint32(v)
		}
		return nil
	})
	return p, err
}

func writeService(e *encoder, st halt.ServiceState) {
	e.putUint(1, st.ID)
	e.putString(2, st.Name)
	stops := make([]int64, len(st.Stops))
	for i, s := range st.Stops {
		stops[i] = int64(s)
	}
	e.putPacked(3, stops)
	e.putPacked(4, widen(st.Waits))
	e.putPacked(5, widen(st.Legs))
	e.putUint(6, uint64(st.Categories))
	e.putBool(7, st.Mirrored)
}

func readService(b []byte) (halt.ServiceState, error) {
	var st halt.ServiceState
	err := walk("service", b, func(num protowire.Number, v uint64, data []byte) error {
		switch num {
		case 1:
			st.ID = v
		case 2:
			st.Name = string(data)
		case 3, 4, 5:
			vs, err := unpack("service", data)
			if err != nil {
				return err
			}
			switch num {
			case 3:
				st.Stops = make([]uint64, len(vs))
				for i, s := range vs {
					st.Stops[i] = uint64(s)
				}
			case 4:
				st.Waits = narrow(vs)
			case 5:
				st.Legs = narrow(vs)
			}
		case 6:
			st.Categories = uint16(v)
		case 7:
			st.Mirrored = v != 0
		}
		return nil
	})
	return st, err
}

// EncodeNetwork writes a whole network.
func EncodeNetwork(st halt.NetworkState) []byte {
	var e encoder
	writeNetwork(&e, st)
	return e.b
}

// DecodeNetwork reads a network written by EncodeNetwork.
func DecodeNetwork(b []byte) (halt.NetworkState, error) {
	return readNetwork(b)
}

func writeNetwork(e *encoder, st halt.NetworkState) {
	e.putUint(1, st.Tick)
	for _, s := range st.Stations {
		e.putMessage(2, func(e *encoder) { writeStation(e, s) })
	}
	for _, l := range st.Lines {
		e.putMessage(3, func(e *encoder) { writeService(e, l) })
	}
	for _, c := range st.Convoys {
		e.putMessage(4, func(e *encoder) { writeService(e, c) })
	}
}

func readNetwork(b []byte) (halt.NetworkState, error) {
	var st halt.NetworkState
	err := walk("network", b, func(num protowire.Number, v uint64, data []byte) error {
		switch num {
		case 1:
			st.Tick = v
		case 2:
			s, err := readStation(data)
			if err != nil {
				return err
			}
			st.Stations = append(st.Stations, s)
		case 3, 4:
			svc, err := readService(data)
			if err != nil {
				return err
			}
			if num == 3 {
				st.Lines = append(st.Lines, svc)
			} else {
				st.Convoys = append(st.Convoys, svc)
			}
		}
		return nil
	})
	return st, err
}

func widen(vs []uint32) []int64 {
	out := make([]int64, len(vs))
	for i, v := range vs {
		out[i] = int64(v)
	}
	return out
}

func narrow(vs []int64) []uint32 {
	out := make([]uint32, len(vs))
	for i, v := range vs {
		out[i] = uint32(v)
	}
	return out
}
