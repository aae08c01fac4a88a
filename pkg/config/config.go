package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sosodev/duration"
	"github.com/tendant/chi-demo/app"
)

// Config is the complete service configuration, read from the environment.
type Config struct {
	BaseURL string `env:"BASE_URL" env-default:"http://localhost:3000"`

	Storage    StorageConfig
	Database   DatabaseConfig
	Mongo      MongoConfig
	Email      EmailConfig
	JWT        JWTConfig
	MultiEmail MultiEmailConfig
	RateLimit  RateLimitConfig
	AppConfig  app.AppConfig
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(RequireValidURL("BASE_URL", c.BaseURL))
		},
		c.Storage.Validate,
		c.JWT.Validate,
		c.MultiEmail.Validate,
		c.RateLimit.Validate,
	)
}

const (
	StorageInMemory = "inmem"
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

type StorageConfig struct {
	Kind    string `env:"STORAGE_KIND" env-default:"inmem"`
	DataDir string `env:"STORAGE_DATA_DIR" env-default:"./data"`
}

func (s StorageConfig) Validate() ValidationErrors {
	errs := CollectErrors(RequireOneOf("STORAGE_KIND", s.Kind,
		[]string{StorageInMemory, StorageFile, StoragePostgres, StorageMongo}))
	if s.Kind == StorageFile {
		errs = append(errs, CollectErrors(RequireNonEmpty("STORAGE_DATA_DIR", s.DataDir))...)
	}
	return errs
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" env-default:"idm"`
}

// ParseDuration accepts ISO-8601 durations ("PT6H", "P3D") and Go
// durations ("6h").
func ParseDuration(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
