package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis    Redis  `yaml:"redis"`
	Peer     Peer   `yaml:"peer"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Peer struct {
	// RendezvousURL is the websocket endpoint of the external rendezvous
	// service used to exchange session identifiers.
	RendezvousURL string `yaml:"rendezvous-url" env:"RENDEZVOUS_URL" env-default:"ws://localhost:9191/rendezvous"`
	// ListenAddr is where the local data-channel listener binds; ":0" picks
	// a free port.
	ListenAddr  string        `yaml:"listen-addr" env:"PEER_LISTEN_ADDR" env-default:":0"`
	DialBackoff time.Duration `yaml:"dial-backoff" env:"PEER_DIAL_BACKOFF" env-default:"1500ms"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
