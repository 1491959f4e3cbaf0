package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr         string `env:"EDUCHAT_ADDR" envDefault:":3215"`
	DBPath       string `env:"EDUCHAT_DB_PATH" envDefault:"educhat.db"`
	WriteTimeout int    `env:"EDUCHAT_WRITE_TIMEOUT" envDefault:"30"` // seconds
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
