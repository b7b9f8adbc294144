// Package config loads contract host settings from TOML.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/host"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/vm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cost_type", func(fl validator.FieldLevel) bool {
		_, ok := budget.ParseCostType(fl.Field().String())
		return ok
	})
	return v
}

// Config is the complete host configuration.
type Config struct {
	Budget Budget `toml:"budget"`
	Wire   Wire   `toml:"wire"`
	Host   Host   `toml:"host"`
	VM     VM     `toml:"vm"`
	Log    Log    `toml:"log"`
}

// Budget sets the resource limits and optionally overrides cost models.
type Budget struct {
	CostParams map[string]CostParams `toml:"cost_params" validate:"dive,keys,cost_type,endkeys"`
	CPULimit   uint64                `toml:"cpu_limit" validate:"required_if=Unlimited false"`
	MemLimit   uint64                `toml:"mem_limit" validate:"required_if=Unlimited false"`
	Unlimited  bool                  `toml:"unlimited"`
}

// CostParams is the linear model of one cost type. Linear terms are in
// 1/128 units per input unit.
type CostParams struct {
	CPUConst uint64 `toml:"cpu_const"`
	CPULin   uint64 `toml:"cpu_lin"`
	MemConst uint64 `toml:"mem_const"`
	MemLin   uint64 `toml:"mem_lin"`
}

// Wire bounds serialized values.
type Wire struct {
	MaxSize  int `toml:"max_size" validate:"gt=0"`
	MaxDepth int `toml:"max_depth" validate:"gt=0,lte=1000"`
}

// Host bounds recursion inside the host.
type Host struct {
	MaxFrameDepth int `toml:"max_frame_depth" validate:"gt=0,lte=256"`
	MaxValueDepth int `toml:"max_value_depth" validate:"gt=0,lte=1000"`
}

// VM configures the embedded WebAssembly engine.
type VM struct {
	MemoryLimitPages uint32 `toml:"memory_limit_pages" validate:"lte=65536"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `toml:"level" validate:"oneof=debug info warn error"`
	Development bool   `toml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Budget: Budget{
			CPULimit: budget.DefaultCPULimit,
			MemLimit: budget.DefaultMemLimit,
		},
		Wire: Wire{
			MaxSize:  scval.DefaultLimits.MaxSize,
			MaxDepth: scval.DefaultLimits.MaxDepth,
		},
		Host: Host{
			MaxFrameDepth: host.DefaultLimits.MaxFrameDepth,
			MaxValueDepth: host.DefaultLimits.MaxValueDepth,
		},
		VM:  VM{MemoryLimitPages: 256},
		Log: Log{Level: "info"},
	}
}

// Load reads and validates the file at path. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates TOML text over the defaults. Unknown keys are
// an error.
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// NewBudget builds a budget with the configured limits and cost models.
func (c *Config) NewBudget() *budget.Budget {
	params := make(map[budget.CostType]budget.Params, len(c.Budget.CostParams))
	for name, p := range c.Budget.CostParams {
		ty, ok := budget.ParseCostType(name)
		if !ok {
			continue
		}
		params[ty] = budget.Params{
			CPU: budget.Model{ConstTerm: p.CPUConst, LinearTerm: p.CPULin},
			Mem: budget.Model{ConstTerm: p.MemConst, LinearTerm: p.MemLin},
		}
	}
	b := budget.New(budget.WithLimits(c.Budget.CPULimit, c.Budget.MemLimit), budget.WithParams(params))
	if c.Budget.Unlimited {
		b.ResetUnlimited()
	}
	return b
}

// Limits returns the host limits.
func (c *Config) Limits() host.Limits {
	return host.Limits{
		Wire:          scval.Limits{MaxSize: c.Wire.MaxSize, MaxDepth: c.Wire.MaxDepth},
		MaxFrameDepth: c.Host.MaxFrameDepth,
		MaxValueDepth: c.Host.MaxValueDepth,
	}
}

// Logger builds the configured zap logger.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = level
	return zc.Build()
}

// HostOptions returns the options that apply c to a new host.
func (c *Config) HostOptions(logger *zap.Logger) []host.Option {
	return []host.Option{
		host.WithBudget(c.NewBudget()),
		host.WithLimits(c.Limits()),
		host.WithVMConfig(vm.Config{MemoryLimitPages: c.VM.MemoryLimitPages}),
		host.WithLogger(logger),
	}
}
