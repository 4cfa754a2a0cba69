package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the loaded application configuration
var Config = Default()

// Default returns the configuration used when no file overrides a value.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 16181},
		Sim: SimConfig{
			Name:            "haltnet",
			Seed:            1,
			TicksPerMonth:   64,
			PassengerRate:   2,
			MailRate:        1,
			MapWidth:        128,
			MapHeight:       128,
			VehicleCapacity: 60,
			Catchment:       2,
		},
		Routing: RoutingConfig{
			MaxExpansions:   4096,
			MaxCacheHits:    0,
			RebuildsPerStep: 8,
			LoadWorkers:     4,
		},
		Ledger: LedgerConfig{
			RerouteInterval:   255,
			PassengerCapacity: 256,
			MailCapacity:      256,
			FreightCapacity:   1024,
		},
		Growth: GrowthConfig{
			StepInterval:        16,
			Weights:             GrowthWeights{Passengers: 40, Mail: 20, Goods: 20, Power: 0},
			ReturnPrecision:     6,
			ComputePrecision:    16,
			Scale:               5,
			CongestionDampening: 50,
			BuildTries:          30,
			ClusterFactor:       2,
			PopulationPerLevel:  12,
		},
		Traffic: TrafficConfig{
			CarOwnershipPercent: 40,
			CarsPerTile:         4,
			MaxTargets:          16,
			WalkingDistance:     3,
		},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (AppConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section's struct tags.
func Validate(cfg AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadAppConfig loads and validates the application configuration from
// the first readable path; with no paths it tries config.yml.
func LoadAppConfig(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{"config.yml", "./config/config.yml"}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}
	cfg, err := Parse(data)
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

// SelectFeed chooses a feed by name; fallback to first; ok is false when
// no feeds are configured.
func SelectFeed(name string) (FeedConfig, bool) {
	if name != "" {
		for _, f := range Config.Feeds {
			if f.Name == name {
				return f, true
			}
		}
	}
	if len(Config.Feeds) > 0 {
		return Config.Feeds[0], true
	}
	return FeedConfig{}, false
}
