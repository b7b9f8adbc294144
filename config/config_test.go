package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/host"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, host.DefaultLimits, cfg.Limits())
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[budget]
cpu_limit = 5000
mem_limit = 6000

[budget.cost_params.MemCpy]
cpu_const = 1
cpu_lin = 0

[wire]
max_depth = 20

[host]
max_frame_depth = 4

[log]
level = "debug"
development = true
`)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), cfg.Budget.CPULimit)
	assert.Equal(t, 20, cfg.Wire.MaxDepth)
	assert.Equal(t, Default().Wire.MaxSize, cfg.Wire.MaxSize, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Limits().MaxFrameDepth)

	b := cfg.NewBudget()
	assert.Equal(t, uint64(5000), b.CPULimit())
	assert.Equal(t, uint64(6000), b.MemLimit())
	require.NoError(t, b.Charge(budget.MemCpy, 1<<20))
	assert.Equal(t, uint64(1), b.CPUConsumed())

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}

func TestParseUnlimited(t *testing.T) {
	cfg, err := Parse("[budget]\nunlimited = true\ncpu_limit = 0\nmem_limit = 0\n")
	require.NoError(t, err)
	b := cfg.NewBudget()
	require.NoError(t, b.Charge(budget.MemAlloc, 1<<40))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"syntax", "[budget\n", "parse error"},
		{"unknown key", "[wire]\nmax_bytes = 1\n", "wire.max_bytes"},
		{"unknown section", "[storage]\npath = \"x\"\n", "storage"},
		{"zero cpu limit", "[budget]\ncpu_limit = 0\n", "CPULimit"},
		{"depth range", "[host]\nmax_value_depth = 5000\n", "MaxValueDepth"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "Level"},
		{"bad cost type", "[budget.cost_params.Nope]\ncpu_const = 1\n", "CostParams"},
		{"memory pages", "[vm]\nmemory_limit_pages = 70000\n", "MemoryLimitPages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.toml")
	require.NoError(t, os.WriteFile(path, []byte("[vm]\nmemory_limit_pages = 16\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), cfg.VM.MemoryLimitPages)
	assert.Len(t, cfg.HostOptions(nil), 4)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read")
}
