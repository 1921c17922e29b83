package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/bench"
	"github.com/fxnlabs/perf-amx/internal/config"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Sweeps.Square.Sizes = []int{8, 16}
	cfg.Sweeps.Rect.M = 8
	cfg.Sweeps.Rect.N2Base = 16
	cfg.Sweeps.Rect.N1s = []int{4, 8}
	cfg.Sweeps.Rect.N2Multipliers = []int{1, 2}
	cfg.Bench.MemoryLimitMiB = 64
	return cfg
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), smallConfig(), zap.NewNop(), Options{Strategy: "all", Out: &out})
	require.NoError(t, err)

	text := out.String()
	// One table per square mode plus the rectangular table.
	assert.Equal(t, 3, bytes.Count(out.Bytes(), []byte("| Mode ")))
	assert.Contains(t, text, "16/16/16")
	assert.Contains(t, text, "8/32/8")
	assert.NotContains(t, text, "skipped")
}

func TestRun_UnknownStrategy(t *testing.T) {
	err := Run(context.Background(), smallConfig(), zap.NewNop(), Options{Strategy: "spiral"})
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestRun_FailsOnOversizedConfiguration(t *testing.T) {
	cfg := smallConfig()
	cfg.Sweeps.Square.Sizes = []int{8, 4096, 16}
	cfg.Bench.MemoryLimitMiB = 1

	var out bytes.Buffer
	err := Run(context.Background(), cfg, zap.NewNop(), Options{Strategy: "square", Out: &out})
	require.ErrorIs(t, err, bench.ErrInsufficientMemory)
	assert.ErrorContains(t, err, "4096/4096/4096: insufficient memory")

	// The rows before the failure are still reported; the GEMM pass never runs.
	assert.Contains(t, out.String(), "8/8/8")
	assert.NotContains(t, out.String(), "16/16/16")
	assert.NotContains(t, out.String(), "GEMM")
	assert.NotContains(t, out.String(), "skipped")
}

func TestRun_AbortsOnOversizedConfiguration(t *testing.T) {
	cfg := smallConfig()
	cfg.Sweeps.Square.Sizes = []int{4096}
	cfg.Bench.MemoryLimitMiB = 1
	cfg.Bench.OnError = config.OnErrorAbort

	err := Run(context.Background(), cfg, zap.NewNop(), Options{Strategy: "square", Out: &bytes.Buffer{}})
	assert.ErrorContains(t, err, "insufficient memory")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, smallConfig(), zap.NewNop(), Options{Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, context.Canceled)
}
