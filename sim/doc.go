// Package sim owns a running world: the station network, the cities and
// the tile grid they share.
//
// Each tick the world steps the network, moves one vehicle along every
// line, lets every city generate passengers and mail and runs the growth
// step. Routing outcomes reported by the network flow back into the
// cities: delivered travellers supply growth, stranded ones try the car.
//
//	w := sim.New(config.Default())
//	a, _ := w.FoundCity("Aston", image.Pt(10, 10), 4, 200)
//	...
//	for i := 0; i < 1000; i++ {
//		w.Step()
//	}
package sim
