package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// RoomDefaults seeds the host configuration of rooms whose name carries no options.
type RoomDefaults struct {
	Rule        int           `env:"DEFAULT_RULE" envDefault:"0"`
	StartLP     int32         `env:"DEFAULT_LP" envDefault:"8000"`
	StartHand   int           `env:"DEFAULT_START_HAND" envDefault:"5"`
	DrawCount   int           `env:"DEFAULT_DRAW_COUNT" envDefault:"1"`
	TimeLimit   time.Duration `env:"DEFAULT_TIME_LIMIT" envDefault:"180s"`
	NoCheckDeck bool          `env:"DEFAULT_NO_CHECK_DECK" envDefault:"false"`
}

func LoadRoomDefaults() (RoomDefaults, error) {
	var cfg RoomDefaults
	err := env.Parse(&cfg)
	return cfg, err
}
