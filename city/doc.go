/*
Package city implements settlements: their statistics, the growth engine
that turns transport satisfaction into residents and buildings, and the
private-traffic generator that absorbs demand public transport could not
serve.

# Growth

Stations and factories report realised flows through the Add* methods.
Every growth step the city compares the flows since the previous step per
growth factor (passengers, mail, goods, power), weighs the satisfaction
ratios and accumulates the result as fixed-point growth pressure where
2^32 is one resident. Whole residents are handed to ChangeSize, which
builds while the population outgrows homes and jobs:

	2*bev > won + arb + 100

A build scores every free tile in the city bounds against the
construction rules in four rotations. When no site scores, the lowest
building of the wanted kind is renovated, and after that the bounds grow
by one tile in one of the four directions. When all of that fails the rest
of the growth step is dropped.

# Tiles

The tile map is a collaborator behind World. Grid is a small in-memory
implementation used by the simulation and by tests; it also answers road
route queries for the private-traffic generator.
*/
package city
