package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        HTTP
	Logging     Logging
	Engine      Engine
}

type HTTP struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
}

type Logging struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
}

// Engine holds solver defaults and request limits. Zero-valued request
// fields fall back to the defaults.
type Engine struct {
	DefaultTolerance     float64 `env:"ENGINE_DEFAULT_TOLERANCE" envDefault:"1e-6"`
	DefaultMaxIterations int     `env:"ENGINE_DEFAULT_MAX_ITERATIONS" envDefault:"100"`
	MaxIterationsLimit   int     `env:"ENGINE_MAX_ITERATIONS_LIMIT" envDefault:"100000"`
	MaxDataPoints        int     `env:"ENGINE_MAX_DATA_POINTS" envDefault:"10000"`
	GMMSeed              uint64  `env:"ENGINE_GMM_SEED" envDefault:"42"`
	Interpolation        string  `env:"ENGINE_INTERPOLATION" envDefault:"cubic"`
}

// DefaultEngine returns the engine settings used when no environment is set.
func DefaultEngine() Engine {
	return Engine{
		DefaultTolerance:     1e-6,
		DefaultMaxIterations: 100,
		MaxIterationsLimit:   100000,
		MaxDataPoints:        10000,
		GMMSeed:              42,
		Interpolation:        "cubic",
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEngine reads only the ENGINE_* settings. Command-line tools use it
// so that server settings in the environment cannot make them fail.
func LoadEngine() (Engine, error) {
	var e Engine
	if err := env.Parse(&e); err != nil {
		return Engine{}, err
	}
	if err := e.Validate(); err != nil {
		return Engine{}, err
	}
	return e, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: HTTP_PORT must be in 1..65535, got %d", c.HTTP.Port)
	}
	return c.Engine.Validate()
}

// Validate rejects non-positive defaults and limits.
func (e Engine) Validate() error {
	switch {
	case !(e.DefaultTolerance > 0):
		return fmt.Errorf("config: ENGINE_DEFAULT_TOLERANCE must be positive, got %v", e.DefaultTolerance)
	case e.DefaultMaxIterations <= 0:
		return fmt.Errorf("config: ENGINE_DEFAULT_MAX_ITERATIONS must be positive, got %d", e.DefaultMaxIterations)
	case e.MaxIterationsLimit < e.DefaultMaxIterations:
		return fmt.Errorf("config: ENGINE_MAX_ITERATIONS_LIMIT (%d) is below the default (%d)",
			e.MaxIterationsLimit, e.DefaultMaxIterations)
	case e.MaxDataPoints <= 0:
		return fmt.Errorf("config: ENGINE_MAX_DATA_POINTS must be positive, got %d", e.MaxDataPoints)
	}
	return nil
}
