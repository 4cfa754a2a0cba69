/*
Package halt implements the station network: which stations can reach
which, how long it takes, and how waiting goods move through them.

# Structure

A Network owns every Station, Line and Convoy in arenas and hands out
generation-checked handles. Lines and unscheduled convoys register with the
stations on their schedule. From those registrations each station keeps,
per goods category:

  - a ConnexionTable: every station directly reachable on one service,
    with the best journey and waiting time;
  - a path cache: for every ultimate destination found so far, the next
    transfer station and the total journey time.

Connexion tables are rebuilt from schedules when a schedule serving the
station changes. Path caches are filled lazily by a bounded, resumable
shortest-time search and dropped when the category's reschedule epoch
moves past the cache's stamp.

# Ledger

Waiting goods are kept per station, per category, keyed by
(goods type, destination): delivering a packet whose key already waits
merges the amounts. Passengers and mail with no route give up and are
counted; freight waits and is retried by the periodic reroute cycle.

	net := halt.NewNetwork(cfg.Routing, cfg.Ledger, goods.NewCatalog())
	a, _ := net.AddStation("A", image.Pt(0, 0), halt.EnableAll)
	b, _ := net.AddStation("B", image.Pt(5, 0), halt.EnableAll)
	net.AddLine("1", halt.Schedule{
		Entries:    []halt.ScheduleEntry{{Halt: a}, {Halt: b}},
		Legs:       []uint32{10, 10},
		Categories: goods.NewCategorySet(goods.CategoryPassengers),
	})
	p := net.PathTo(a, b, goods.CategoryPassengers) // next hop b, 10 minutes

Nothing in this package is safe for concurrent use except RebuildAll,
which parallelises a pure build phase internally.
*/
package halt
