package config

// ServerConfig contains report server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// RoutingConfig bounds connexion rebuilds and path searches
type RoutingConfig struct {
	// MaxExpansions caps the nodes settled by one resumed path search.
	MaxExpansions int `yaml:"maxExpansions" validate:"gt=0"`
	// MaxCacheHits forces a path cache refresh after this many hits (0 = never).
	MaxCacheHits int `yaml:"maxCacheHits" validate:"gte=0"`
	// RebuildsPerStep is how many queued stations rebuild connexions per tick.
	RebuildsPerStep int `yaml:"rebuildsPerStep" validate:"gt=0"`
	// LoadWorkers is the parallelism of the bulk rebuild at world load.
	LoadWorkers int `yaml:"loadWorkers" validate:"gte=1"`
}

// LedgerConfig contains waiting-goods policy
type LedgerConfig struct {
	RerouteInterval int `yaml:"rerouteInterval" validate:"gt=0"`
	// FreightMaxRetries drops unroutable freight after this many reroute cycles (0 = keep).
	FreightMaxRetries int `yaml:"freightMaxRetries" validate:"gte=0"`
	// FreightMaxWaitTicks drops unroutable freight waiting longer than this (0 = keep).
	FreightMaxWaitTicks int `yaml:"freightMaxWaitTicks" validate:"gte=0"`
	// Capacity per class used for stations created without explicit capacity.
	PassengerCapacity int `yaml:"passengerCapacity" validate:"gte=0"`
	MailCapacity      int `yaml:"mailCapacity" validate:"gte=0"`
	FreightCapacity   int `yaml:"freightCapacity" validate:"gte=0"`
}

// GrowthWeights weights each growth factor's satisfaction ratio
type GrowthWeights struct {
	Passengers int `yaml:"passengers" validate:"gte=0"`
	Mail       int `yaml:"mail" validate:"gte=0"`
	Goods      int `yaml:"goods" validate:"gte=0"`
	Power      int `yaml:"power" validate:"gte=0"`
}

// GrowthConfig contains settlement growth parameters
type GrowthConfig struct {
	StepInterval int           `yaml:"stepInterval" validate:"gt=0"`
	Weights      GrowthWeights `yaml:"weights"`
	// ReturnPrecision and ComputePrecision are fractional bits of the base growth.
	ReturnPrecision  uint `yaml:"returnPrecision" validate:"lte=16"`
	ComputePrecision uint `yaml:"computePrecision" validate:"gtefield=ReturnPrecision,lte=24"`
	// Scale converts a full-satisfaction growth step into residents, in percent.
	Scale int `yaml:"scale" validate:"gte=0"`
	// CongestionDampening is how strongly congestion (0-100) reduces growth, in percent.
	CongestionDampening int `yaml:"congestionDampening" validate:"gte=0,lte=100"`
	BuildTries          int `yaml:"buildTries" validate:"gt=0"`
	ClusterFactor       int `yaml:"clusterFactor" validate:"gte=0"`
	PopulationPerLevel  int `yaml:"populationPerLevel" validate:"gt=0"`
	// Rules are construction patterns; empty means built-in rules.
	Rules []RuleConfig `yaml:"rules" validate:"dive"`
}

// RuleConfig is one construction pattern, rows of equal length.
//
// Pattern alphabet: '.' any, 'S' road, 's' no road, 'H' city building,
// 'h' no city building, 'n' free buildable land, 'U' not buildable.
type RuleConfig struct {
	Kind    string   `yaml:"kind" validate:"oneof=road house"`
	Chance  int      `yaml:"chance" validate:"gt=0"`
	Pattern []string `yaml:"pattern" validate:"min=1"`
}

// TrafficConfig contains private traffic parameters
type TrafficConfig struct {
	CarOwnershipPercent int `yaml:"carOwnershipPercent" validate:"gte=0,lte=100"`
	// CarsPerTile is the road density at which congestion saturates.
	CarsPerTile int `yaml:"carsPerTile" validate:"gt=0"`
	// MaxTargets bounds candidate destinations considered per trip.
	MaxTargets int `yaml:"maxTargets" validate:"gt=0"`
	// WalkingDistance in tiles below which passengers walk.
	WalkingDistance int `yaml:"walkingDistance" validate:"gte=0"`
}

// SimConfig contains world clock parameters
type SimConfig struct {
	Name          string `yaml:"name" validate:"required"`
	Seed          uint64 `yaml:"seed"`
	TicksPerMonth int    `yaml:"ticksPerMonth" validate:"gt=0"`
	// PassengerRate is passengers generated per 100 citizens per tick.
	PassengerRate int `yaml:"passengerRate" validate:"gte=0"`
	// MailRate is letters generated per 100 citizens per tick.
	MailRate int `yaml:"mailRate" validate:"gte=0"`
	// MapWidth and MapHeight size the tile grid in tiles.
	MapWidth  int `yaml:"mapWidth" validate:"gt=0"`
	MapHeight int `yaml:"mapHeight" validate:"gt=0"`
	// VehicleCapacity is the load of the vehicle running each line.
	VehicleCapacity int `yaml:"vehicleCapacity" validate:"gt=0"`
	// Catchment is how far outside its bounds a city uses stations, in tiles.
	Catchment int `yaml:"catchment" validate:"gte=0"`
}

// FeedConfig names optional GTFS inputs for schedule import
type FeedConfig struct {
	Name           string `yaml:"name" validate:"required"`
	StaticPath     string `yaml:"staticPath" validate:"omitempty"`
	StaticURL      string `yaml:"staticURL" validate:"omitempty,url"`
	TripUpdatesURL string `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	TimeoutMS      int    `yaml:"timeoutMS" validate:"gte=0"`
}

// CityConfig founds a city when a world is created from scratch
type CityConfig struct {
	Name       string `yaml:"name" validate:"required"`
	X          int    `yaml:"x" validate:"gte=0"`
	Y          int    `yaml:"y" validate:"gte=0"`
	Radius     int    `yaml:"radius" validate:"gte=1"`
	Population int64  `yaml:"population" validate:"gte=0"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Sim     SimConfig     `yaml:"sim"`
	Routing RoutingConfig `yaml:"routing"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Growth  GrowthConfig  `yaml:"growth"`
	Traffic TrafficConfig `yaml:"traffic"`
	Cities  []CityConfig  `yaml:"cities" validate:"dive"`
	Feeds   []FeedConfig  `yaml:"feeds" validate:"dive"`
}
