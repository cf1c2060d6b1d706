// Package config loads the GSM.* option table (power/timing-advance
// control constants, band selection, speech latency cap) from a YAML
// file, grounded on cmd/dmrstream's Config struct and homebrew/config.go's
// use of gopkg.in/yaml.v2 for repeater/network configuration.
package config

import (
	"fmt"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

// PowerConfig holds the handset transmit-power closed-loop control
// constants (GSM.MS.Power.*).
type PowerConfig struct {
	Max     int `yaml:"Max"`
	Min     int `yaml:"Min"`
	Damping int `yaml:"Damping"`
}

// TAConfig holds the handset timing-advance closed-loop control
// constants (GSM.MS.TA.*).
type TAConfig struct {
	Max     int `yaml:"Max"`
	Damping int `yaml:"Damping"`
}

// Config mirrors the GSM.* option table §6 describes, loaded once at
// startup and passed by value into every component's constructor.
type Config struct {
	Band             string      `yaml:"Band"`
	RSSITarget       int         `yaml:"RSSITarget"`
	MSPower          PowerConfig `yaml:"MSPower"`
	MSTA             TAConfig    `yaml:"MSTiming"`
	MaxSpeechLatency int         `yaml:"MaxSpeechLatency"`
	BCC              int         `yaml:"BCC"`
	BSIC             int         `yaml:"BSIC"`
}

// Default returns a Config seeded with the conservative defaults
// OpenBTS ships, used whenever a file is not provided.
func Default() Config {
	return Config{
		Band:             "GSM900",
		RSSITarget:       -50,
		MSPower:          PowerConfig{Max: 33, Min: 5, Damping: 20},
		MSTA:             TAConfig{Max: 63, Damping: 20},
		MaxSpeechLatency: 4,
		BCC:              0,
		BSIC:             7,
	}
}

// Load reads and parses a YAML configuration file, starting from
// Default() so a partial file only overrides the fields it names.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
