package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"time"

	"github.com/coder/quartz"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/querystats/observe"
	"github.com/jonwraymond/querystats/sampling"
	"github.com/jonwraymond/querystats/store"
)

// Config is the full query stats configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Sampling SamplingConfig `yaml:"sampling"`
	// Strict rejects commands carrying options the registry does not know.
	Strict  bool           `yaml:"strict"`
	Observe observe.Config `yaml:"observe"`
	Server  ServerConfig   `yaml:"server"`
}

// StoreConfig configures the stats store.
type StoreConfig struct {
	Capacity      int           `yaml:"capacity"`
	Shards        int           `yaml:"shards"`
	MaxIdle       time.Duration `yaml:"max_idle"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SamplingConfig configures which commands are recorded.
type SamplingConfig struct {
	// Ratio is the share of commands recorded, in [0, 1].
	Ratio float64 `yaml:"ratio"`
	// Rate caps recorded commands per second. Zero disables the cap.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the recording breaker.
type BreakerConfig struct {
	// MaxFailures of zero disables the breaker.
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ServerConfig configures the HTTP server of qstats serve.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Capacity:      store.DefaultCapacity,
			Shards:        store.DefaultShards,
			SweepInterval: time.Minute,
		},
		Sampling: SamplingConfig{
			Ratio: 1,
			Breaker: BreakerConfig{
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Observe: observe.Config{
			ServiceName: "querystats",
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate reports every unusable setting.
func (c *Config) Validate() error {
	var errs []error
	switch {
	case c.Store.Capacity <= 0:
		errs = append(errs, fmt.Errorf("%w: store.capacity %d must be positive", ErrInvalidConfig, c.Store.Capacity))
	case c.Store.Capacity < c.Store.Shards:
		errs = append(errs, fmt.Errorf("%w: store.capacity %d is below store.shards %d", ErrInvalidConfig, c.Store.Capacity, c.Store.Shards))
	}
	if c.Store.Shards <= 0 || bits.OnesCount(uint(c.Store.Shards)) != 1 {
		errs = append(errs, fmt.Errorf("%w: store.shards %d is not a power of two", ErrInvalidConfig, c.Store.Shards))
	}
	if c.Store.MaxIdle < 0 || c.Store.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: store durations must not be negative", ErrInvalidConfig))
	}
	if c.Sampling.Ratio < 0 || c.Sampling.Ratio > 1 {
		errs = append(errs, fmt.Errorf("%w: sampling.ratio %v outside [0, 1]", ErrInvalidConfig, c.Sampling.Ratio))
	}
	if c.Sampling.Rate < 0 || c.Sampling.Burst < 0 {
		errs = append(errs, fmt.Errorf("%w: sampling.rate and sampling.burst must not be negative", ErrInvalidConfig))
	}
	if c.Sampling.Breaker.MaxFailures < 0 || c.Sampling.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: sampling.breaker settings must not be negative", ErrInvalidConfig))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// Load reads and validates a YAML config file after expanding ${VAR}
// references against the environment.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	data, err = expandEnv(data)
	if err != nil {
		return Config{}, err
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates YAML from r on top of Default. Unknown keys
// are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// StoreOptions returns the store configuration using clock.
func (c *Config) StoreOptions(clock quartz.Clock) store.Config {
	return store.Config{
		Capacity:      c.Store.Capacity,
		Shards:        c.Store.Shards,
		MaxIdle:       c.Store.MaxIdle,
		SweepInterval: c.Store.SweepInterval,
		Clock:         clock,
	}
}

// Sampler builds the configured sampler: a ratio sampler combined with a
// rate limit when Rate is set.
func (c *Config) Sampler(clock quartz.Clock) (sampling.Sampler, error) {
	var samplers []sampling.Sampler
	if c.Sampling.Ratio < 1 {
		r, err := sampling.Ratio(c.Sampling.Ratio)
		if err != nil {
			return nil, err
		}
		samplers = append(samplers, r)
	}
	if c.Sampling.Rate > 0 {
		rl, err := sampling.RateLimit(sampling.RateLimitConfig{
			Rate:  c.Sampling.Rate,
			Burst: c.Sampling.Burst,
			Clock: clock,
		})
		if err != nil {
			return nil, err
		}
		samplers = append(samplers, rl)
	}
	if len(samplers) == 0 {
		return sampling.Always(), nil
	}
	return sampling.All(samplers...), nil
}

// Breaker builds the configured breaker, or nil when disabled.
func (c *Config) Breaker(clock quartz.Clock, onStateChange func(from, to sampling.State)) *sampling.Breaker {
	if c.Sampling.Breaker.MaxFailures == 0 {
		return nil
	}
	return sampling.NewBreaker(sampling.BreakerConfig{
		MaxFailures:   c.Sampling.Breaker.MaxFailures,
		ResetTimeout:  c.Sampling.Breaker.ResetTimeout,
		OnStateChange: onStateChange,
		Clock:         clock,
	})
}
