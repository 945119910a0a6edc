// Package config loads treeq's engine configuration.
//
// A config file is YAML; fields left out keep their defaults and unknown
// fields are errors:
//
//	optimizer:
//	  max_iterations: 64
//	  disabled_rules: [SortFusion]
//	executor:
//	  parallelism: 4
//	  max_rows: 1000000
//	eval:
//	  regex_cache_size: 256
//	log:
//	  level: info
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/exec"
	"github.com/roach88/treeq/internal/optimizer"
)

// Config is the full engine configuration.
type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Eval      EvalConfig      `yaml:"eval"`
	Log       LogConfig       `yaml:"log"`
}

type OptimizerConfig struct {
	// Disabled skips optimization entirely.
	Disabled      bool     `yaml:"disabled"`
	MaxIterations int      `yaml:"max_iterations"`
	DisabledRules []string `yaml:"disabled_rules"`
}

type ExecutorConfig struct {
	// Parallelism is the worker count for row-wise operators; 0 or 1 runs
	// sequentially.
	Parallelism int `yaml:"parallelism"`
	// MaxRows caps any operator's output; 0 is unlimited.
	MaxRows int `yaml:"max_rows"`
}

type EvalConfig struct {
	RegexCacheSize int `yaml:"regex_cache_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Optimizer: OptimizerConfig{MaxIterations: optimizer.DefaultMaxIterations},
		Executor:  ExecutorConfig{MaxRows: exec.DefaultMaxRows},
		Eval:      EvalConfig{RegexCacheSize: eval.DefaultRegexCacheSize},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Optimizer.MaxIterations < 1 {
		errs = multierror.Append(errs, fmt.Errorf("optimizer.max_iterations must be at least 1, got %d", c.Optimizer.MaxIterations))
	}
	known := optimizer.New().RuleNames()
	for _, name := range c.Optimizer.DisabledRules {
		if !slices.Contains(known, name) {
			errs = multierror.Append(errs, fmt.Errorf("optimizer.disabled_rules: unknown rule %q", name))
		}
	}
	if c.Executor.Parallelism < 0 {
		errs = multierror.Append(errs, fmt.Errorf("executor.parallelism must not be negative, got %d", c.Executor.Parallelism))
	}
	if c.Executor.MaxRows < 0 {
		errs = multierror.Append(errs, fmt.Errorf("executor.max_rows must not be negative, got %d", c.Executor.MaxRows))
	}
	if c.Eval.RegexCacheSize < 0 {
		errs = multierror.Append(errs, fmt.Errorf("eval.regex_cache_size must not be negative, got %d", c.Eval.RegexCacheSize))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewEvaluator builds an evaluator from the eval settings.
func (c *Config) NewEvaluator() *eval.Evaluator {
	return eval.New(eval.WithRegexCacheSize(c.Eval.RegexCacheSize))
}

// NewOptimizer builds an optimizer from the optimizer settings. It returns
// nil when optimization is disabled.
func (c *Config) NewOptimizer() *optimizer.Optimizer {
	if c.Optimizer.Disabled {
		return nil
	}
	return optimizer.New(
		optimizer.WithEvaluator(c.NewEvaluator()),
		optimizer.WithMaxIterations(c.Optimizer.MaxIterations),
		optimizer.WithDisabledRules(c.Optimizer.DisabledRules...),
	)
}

// NewExecutor builds an executor over cat from the executor and eval
// settings. The caller closes it.
func (c *Config) NewExecutor(cat exec.Catalog) (*exec.Executor, error) {
	return exec.New(cat,
		exec.WithParallelism(c.Executor.Parallelism),
		exec.WithMaxRows(c.Executor.MaxRows),
		exec.WithEvaluator(c.NewEvaluator()),
	)
}
