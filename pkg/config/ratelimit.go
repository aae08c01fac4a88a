package config

import (
	"time"
)

const (
	RateLimitNone   = "none"
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// RateLimitConfig throttles confirmation and reset instructions per address
// and API requests per client IP.
type RateLimitConfig struct {
	Kind string `env:"RATE_LIMIT_KIND" env-default:"memory"`

	// Instructions allowed per address and window.
	InstructionsLimit  int    `env:"RATE_LIMIT_INSTRUCTIONS" env-default:"5"`
	InstructionsWindow string `env:"RATE_LIMIT_INSTRUCTIONS_WINDOW" env-default:"PT1H"`

	// Requests allowed per client IP and window.
	RequestsLimit  int    `env:"RATE_LIMIT_REQUESTS" env-default:"60"`
	RequestsWindow string `env:"RATE_LIMIT_REQUESTS_WINDOW" env-default:"PT1M"`

	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
}

func (r RateLimitConfig) ParseInstructionsWindow() (time.Duration, error) {
	return ParseDuration(r.InstructionsWindow)
}

func (r RateLimitConfig) ParseRequestsWindow() (time.Duration, error) {
	return ParseDuration(r.RequestsWindow)
}

func (r RateLimitConfig) Validate() ValidationErrors {
	errs := CollectErrors(RequireOneOf("RATE_LIMIT_KIND", r.Kind, []string{RateLimitNone, RateLimitMemory, RateLimitRedis}))
	if r.Kind == RateLimitNone {
		return errs
	}
	errs = append(errs, CollectErrors(
		RequirePositive("RATE_LIMIT_INSTRUCTIONS", r.InstructionsLimit),
		RequirePositive("RATE_LIMIT_REQUESTS", r.RequestsLimit),
	)...)
	windows := []struct {
		field string
		parse func() (time.Duration, error)
	}{
		{"RATE_LIMIT_INSTRUCTIONS_WINDOW", r.ParseInstructionsWindow},
		{"RATE_LIMIT_REQUESTS_WINDOW", r.ParseRequestsWindow},
	}
	for _, w := range windows {
		d, err := w.parse()
		if err != nil {
			errs = append(errs, ValidationError{Field: w.field, Message: err.Error()})
			continue
		}
		if verr := RequirePositiveDuration(w.field, d); verr != nil {
			errs = append(errs, *verr)
		}
	}
	if r.Kind == RateLimitRedis {
		errs = append(errs, CollectErrors(RequireNonEmpty("REDIS_ADDR", r.RedisAddr))...)
	}
	return errs
}
