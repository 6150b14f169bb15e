package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	TCPAddr     string `env:"TCP_ADDR" envDefault:":1234"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	BoardSize          int `env:"BOARD_SIZE" envDefault:"15"`
	MoveTimeoutSeconds int `env:"MOVE_TIMEOUT_SECONDS" envDefault:"30"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
