// Package config loads the engine's runtime configuration from the
// environment and the module routing file.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the environment-driven server configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// Operator is the only identity allowed to create lotteries, configure
	// the payment token and withdraw proceeds.
	Operator string `env:"LOTTERY_OPERATOR,required"`
	// Custody is the account name holding ticket payments.
	Custody string `env:"LOTTERY_CUSTODY,default=engine-custody"`
	// PaymentTokenID preconfigures the payment token at startup; empty
	// leaves it to a setPaymentToken call.
	PaymentTokenID string `env:"PAYMENT_TOKEN_ID"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// DatabaseURL selects the Postgres store; empty runs in-memory.
	DatabaseURL string `env:"DATABASE_URL"`

	FinalizeSchedule string `env:"FINALIZE_SCHEDULE,default=@every 1m"`

	RateLimitPerSecond int `env:"RATE_LIMIT_PER_SECOND,default=20"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST,default=40"`

	// ModulesFile points at the dispatch module config; empty enables all
	// modules.
	ModulesFile string `env:"MODULES_FILE"`
}

// Load reads .env (when present) and decodes the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}
