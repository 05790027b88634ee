package main

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// demoConfig holds the wiring of the demo binary. Envelope behaviour itself
// is read by config.Load from APIENVELOPE_ variables.
type demoConfig struct {
	Addr     string        `env:"ADDR" envDefault:":8080"`
	LogLevel slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"15s"`

	// Optional backends; an empty value keeps the in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`
	MongoURI    string `env:"MONGO_URI"`
	MongoDB     string `env:"MONGO_DB" envDefault:"apidemo"`
	RedisAddr   string `env:"REDIS_ADDR"`
}

func loadDemoConfig() (demoConfig, error) {
	var cfg demoConfig
	err := env.ParseWithOptions(&cfg, env.Options{Prefix: "APIDEMO_"})
	return cfg, err
}
