package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Bench   BenchConfig  `yaml:"bench"`
	Sweeps  SweepsConfig `yaml:"sweeps"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"metrics"`
}

type BenchConfig struct {
	Seed    uint64 `yaml:"seed"`
	Workers int    `yaml:"workers"`
	OnError string `yaml:"onError"`
	// MemoryLimitMiB caps operands plus kernel workspace per configuration.
	// Zero uses the available host memory.
	MemoryLimitMiB uint64 `yaml:"memoryLimitMiB"`
}

type SweepsConfig struct {
	Square struct {
		Sizes []int `yaml:"sizes"`
	} `yaml:"square"`
	Rect struct {
		M             int   `yaml:"m"`
		N2Base        int   `yaml:"n2Base"`
		N1s           []int `yaml:"n1s"`
		N2Multipliers []int `yaml:"n2Multipliers"`
	} `yaml:"rect"`
}

// Default returns the configuration of the standard benchmark run.
func Default() *Config {
	var cfg Config
	cfg.Logger.Verbosity = "info"
	cfg.Bench.Seed = 47
	cfg.Bench.OnError = OnErrorSkip
	cfg.Sweeps.Square.Sizes = []int{64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768}
	cfg.Sweeps.Rect.M = 1024
	cfg.Sweeps.Rect.N2Base = 1024 * 1024
	cfg.Sweeps.Rect.N1s = []int{32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768}
	cfg.Sweeps.Rect.N2Multipliers = []int{1, 2, 4, 8}
	return &cfg
}

// LoadConfig reads a YAML file over the defaults. Keys absent from the file
// keep their default value; lists present in the file replace the default
// list.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Bench.OnError != OnErrorSkip && c.Bench.OnError != OnErrorAbort {
		errs = append(errs, fmt.Errorf("bench.onError must be %q or %q, got %q", OnErrorSkip, OnErrorAbort, c.Bench.OnError))
	}
	if c.Bench.Workers < 0 {
		errs = append(errs, fmt.Errorf("bench.workers must not be negative, got %d", c.Bench.Workers))
	}
	errs = append(errs, positive("sweeps.square.sizes", c.Sweeps.Square.Sizes...))
	errs = append(errs, positive("sweeps.rect.m", c.Sweeps.Rect.M))
	errs = append(errs, positive("sweeps.rect.n2Base", c.Sweeps.Rect.N2Base))
	errs = append(errs, positive("sweeps.rect.n1s", c.Sweeps.Rect.N1s...))
	errs = append(errs, positive("sweeps.rect.n2Multipliers", c.Sweeps.Rect.N2Multipliers...))
	return errors.Join(errs...)
}

func positive(key string, values ...int) error {
	for i, v := range values {
		if v <= 0 {
			return fmt.Errorf("%s[%d] must be positive, got %d", key, i, v)
		}
	}
	return nil
}
