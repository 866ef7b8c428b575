package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"qtermsim/internal/quantum"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type SimulatorConfig struct {
	MaxQubits        int `yaml:"max_qubits" validate:"min=1,max=20"`
	DefaultQubits    int `yaml:"default_qubits" validate:"min=1,ltefield=MaxQubits"`
	UnitaryMaxQubits int `yaml:"unitary_max_qubits" validate:"min=1,max=10"`
}

type SamplerConfig struct {
	DefaultShots int    `yaml:"default_shots" validate:"min=1,ltefield=MaxShots"`
	MaxShots     int    `yaml:"max_shots" validate:"min=1"`
	Seed         uint64 `yaml:"seed"` // 0 seeds from the clock
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	DevMode        bool          `yaml:"dev_mode"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			MaxQubits:        6,
			DefaultQubits:    2,
			UnitaryMaxQubits: quantum.DefaultUnitaryMaxQubits,
		},
		Sampler: SamplerConfig{
			DefaultShots: 1024,
			MaxShots:     1_000_000,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load starts from Default, overlays the YAML file at path (skipped when path is
// empty), then environment variables, and validates the result. A .env file in
// the working directory is loaded first if it exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and cross-field bounds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Simulator.MaxQubits > quantum.MaxQubits {
		return fmt.Errorf("%w: max_qubits %d above engine ceiling %d", ErrInvalid, c.Simulator.MaxQubits, quantum.MaxQubits)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
				return
			}
			*dst = n
		}
	}
	setInt("QTERMSIM_MAX_QUBITS", &c.Simulator.MaxQubits)
	setInt("QTERMSIM_UNITARY_MAX_QUBITS", &c.Simulator.UnitaryMaxQubits)
	setInt("QTERMSIM_SHOTS", &c.Sampler.DefaultShots)

	if v := os.Getenv("QTERMSIM_SEED"); v != "" && err == nil {
		seed, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("%w: QTERMSIM_SEED=%q", ErrInvalid, v)
		}
		c.Sampler.Seed = seed
	}
	if v := os.Getenv("QTERMSIM_DEV_MODE"); v != "" && err == nil {
		dev, perr := strconv.ParseBool(v)
		if perr != nil {
			return fmt.Errorf("%w: QTERMSIM_DEV_MODE=%q", ErrInvalid, v)
		}
		c.Server.DevMode = dev
	}
	if v := os.Getenv("QTERMSIM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("QTERMSIM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return err
}
