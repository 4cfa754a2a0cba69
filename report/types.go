package report

// CityReport is the state of one city at snapshot time.
type CityReport struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	X                int    `json:"x"`
	Y                int    `json:"y"`
	Population       int64  `json:"population"`
	Jobs             int64  `json:"jobs"`
	Buildings        int    `json:"buildings"`
	Growth           int64  `json:"growth"`
	Congestion       int64  `json:"congestion"`
	PasGenerated     int64  `json:"pas_generated"`
	PasTransported   int64  `json:"pas_transported"`
	PasWalked        int64  `json:"pas_walked"`
	MailGenerated    int64  `json:"mail_generated"`
	MailTransported  int64  `json:"mail_transported"`
	GoodsReceived    int64  `json:"goods_received"`
	CarsIncoming     int64  `json:"cars_incoming"`
	CarsOutgoing     int64  `json:"cars_outgoing"`
	ReachableTargets int    `json:"reachable_targets"`
}

// StationReport is the state of one station at snapshot time.
type StationReport struct {
	ID          uint64            `json:"id"`
	Name        string            `json:"name"`
	X           int               `json:"x"`
	Y           int               `json:"y"`
	Status      string            `json:"status"`
	Waiting     map[string]uint32 `json:"waiting"`
	Happy       int64             `json:"happy"`
	Unhappy     int64             `json:"unhappy"`
	NoRoute     int64             `json:"no_route"`
	Lines       []string          `json:"lines"`
	Connexions  int               `json:"connexions"`
	Overcrowded bool              `json:"overcrowded"`
}

// LineReport is one line with the load of its vehicle.
type LineReport struct {
	ID       uint64   `json:"id"`
	Name     string   `json:"name"`
	Stops    []string `json:"stops"`
	Legs     []uint32 `json:"legs"`
	Mirrored bool     `json:"mirrored"`
	Load     uint32   `json:"load"`
}

// PathReport answers a route query between two stations.
type PathReport struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Category    string   `json:"category"`
	Reachable   bool     `json:"reachable"`
	JourneyTime uint32   `json:"journey_time,omitempty"`
	Next        string   `json:"next,omitempty"`
	Stations    []string `json:"stations,omitempty"`
}

// Snapshot is a consistent view of the world at one tick.
type Snapshot struct {
	World    string          `json:"world"`
	Name     string          `json:"name"`
	Tick     uint64          `json:"tick"`
	Cities   []CityReport    `json:"cities"`
	Stations []StationReport `json:"stations"`
	Lines    []LineReport    `json:"lines"`
}
