//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/accel"
	"github.com/fxnlabs/perf-amx/internal/app"
	"github.com/fxnlabs/perf-amx/internal/bench"
	"github.com/fxnlabs/perf-amx/internal/config"
	"github.com/fxnlabs/perf-amx/internal/sweep"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Logger.Verbosity = "error"
	cfg.Bench.MemoryLimitMiB = 256
	cfg.Sweeps.Square.Sizes = []int{16, 32, 64}
	cfg.Sweeps.Rect.M = 32
	cfg.Sweeps.Rect.N2Base = 64
	cfg.Sweeps.Rect.N1s = []int{8, 16}
	cfg.Sweeps.Rect.N2Multipliers = []int{1, 2}
	return cfg
}

func TestSweep_EndToEnd(t *testing.T) {
	var out bytes.Buffer
	var controller *sweep.Controller
	var manager *accel.Manager

	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Metrics.ListenAddress = fmt.Sprintf("127.0.0.1:%d", port)

	fxApp := fxtest.New(t,
		fx.Supply(cfg, zap.NewNop(), app.Options{Strategy: sweep.StrategyAll, Out: &out}),
		app.Module,
		fx.Populate(&controller, &manager),
	)
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	strategies, err := sweep.FromConfig(cfg, sweep.StrategyAll)
	require.NoError(t, err)
	require.NoError(t, controller.Run(context.Background(), strategies...))

	text := out.String()
	// Square IP, square GEMM, then one rectangular table.
	assert.Equal(t, 3, strings.Count(text, "| Mode "))
	label := manager.Label()
	assert.Equal(t, 3+4, strings.Count(text, "IP / "+label+" "), "square and rect IP rows")
	assert.Equal(t, 3, strings.Count(text, "GEMM / "+label+" "), "square GEMM rows")
	for _, dims := range []string{"16/16/16", "64/64/64", "8/64/32", "16/128/32"} {
		assert.Contains(t, text, dims)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	var body []byte
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + cfg.Metrics.ListenAddress + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, string(body), "perfamx_gflops")
	assert.Contains(t, string(body), `perfamx_runs_total{mode="IP / `+label+`"`)
}

func TestSweep_StopsOnOversized(t *testing.T) {
	var out bytes.Buffer
	var controller *sweep.Controller

	cfg := testConfig()
	cfg.Bench.MemoryLimitMiB = 1
	cfg.Sweeps.Square.Sizes = []int{16, 2048, 32}

	fxApp := fxtest.New(t,
		fx.Supply(cfg, zap.NewNop(), app.Options{Out: &out}),
		app.Module,
		fx.Populate(&controller),
	)
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	strategies, err := sweep.FromConfig(cfg, sweep.StrategySquare)
	require.NoError(t, err)
	err = controller.Run(context.Background(), strategies...)
	require.ErrorIs(t, err, bench.ErrInsufficientMemory)
	assert.ErrorContains(t, err, "2048/2048/2048: insufficient memory")

	text := out.String()
	assert.Contains(t, text, "16/16/16")
	assert.NotContains(t, text, "32/32/32")
}
