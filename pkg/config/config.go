package config

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
)

type Config struct {
	// Node configuration
	NodeName      string
	ListenAddress string
	Port          int

	// Ledger configuration
	DataDir string

	// Protocol configuration
	ArbiterMinStake uint64

	// P2P configuration
	BootstrapPeers []string

	// API configuration
	APIPort int
}

func DefaultConfig() *Config {
	return &Config{
		NodeName:        "agenc-registry",
		ListenAddress:   "0.0.0.0",
		Port:            4001,
		DataDir:         "./data",
		ArbiterMinStake: 1000,
		APIPort:         8080,
	}
}

// LoadFile overlays a TOML file onto the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
