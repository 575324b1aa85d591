package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ProbeConfig drives the smoke client in cmd/duel-probe.
type ProbeConfig struct {
	WSURL     string        `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	Name      string        `env:"PROBE_NAME" envDefault:"probe"`
	Room      string        `env:"PROBE_ROOM" envDefault:"probe"`
	Pass      string        `env:"PROBE_PASS"`
	DeckFile  string        `env:"PROBE_DECK_FILE"`
	Surrender bool          `env:"PROBE_SURRENDER" envDefault:"true"`
	Timeout   time.Duration `env:"PROBE_TIMEOUT" envDefault:"5m"`
}

func LoadProbe() (ProbeConfig, error) {
	var cfg ProbeConfig
	err := env.Parse(&cfg)
	return cfg, err
}
