package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	IdentityAddressName = "address_name"
	IdentityName        = "name"
	IdentityToken       = "token"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	RedisURL    string `env:"REDIS_URL"`
	CardDBPath  string `env:"CARD_DB_PATH"`

	EnginePath    string        `env:"ENGINE_PATH,required,notEmpty"`
	EngineArgs    []string      `env:"ENGINE_ARGS" envSeparator:" "`
	EngineTimeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"10s"`

	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	ReconnectTimeout  time.Duration `env:"RECONNECT_TIMEOUT" envDefault:"3m"`
	ReconnectIdentity string        `env:"RECONNECT_IDENTITY" envDefault:"address_name"`
	ReconnectKick     bool          `env:"RECONNECT_KICK" envDefault:"true"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	AdminAPIKey    string   `env:"ADMIN_API_KEY"`

	// ProtocolVersion rejects joins that announce another version; 0 accepts any.
	ProtocolVersion int `env:"PROTOCOL_VERSION" envDefault:"0"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
