// Package app wires the benchmark components into an fx application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/accel"
	"github.com/fxnlabs/perf-amx/internal/bench"
	"github.com/fxnlabs/perf-amx/internal/config"
	"github.com/fxnlabs/perf-amx/internal/metrics"
	"github.com/fxnlabs/perf-amx/internal/sweep"
)

// Options carries the command line settings that are not part of Config.
type Options struct {
	Debug    bool
	Strategy string
	// Out receives the result tables. Defaults to stdout.
	Out io.Writer
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// Module provides the execution context, driver and sweep controller. It
// expects *config.Config, *zap.Logger and Options to be supplied.
var Module = fx.Module("perfamx",
	fx.Provide(
		metrics.New,
		NewManager,
		NewDriver,
		NewController,
	),
	fx.Invoke(RegisterMetricsServer),
)

// NewManager creates the execution context once per run and releases it
// when the application stops.
func NewManager(lc fx.Lifecycle, log *zap.Logger, opts Options) (*accel.Manager, error) {
	m, err := accel.NewManager(log.Named("accel"), opts.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution context: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.Cleanup()
		},
	})
	return m, nil
}

func NewDriver(cfg *config.Config, manager *accel.Manager, m *metrics.Metrics, log *zap.Logger) *bench.Driver {
	return bench.NewDriver(manager, bench.Options{
		Seed:        cfg.Bench.Seed,
		MemoryLimit: cfg.Bench.MemoryLimitMiB << 20,
		Workers:     cfg.Bench.Workers,
	}, m, log.Named("bench"))
}

func NewController(cfg *config.Config, driver *bench.Driver, opts Options, log *zap.Logger) *sweep.Controller {
	return sweep.NewController(driver, opts.out(), cfg.Bench.OnError, log.Named("sweep"))
}

// RegisterMetricsServer serves /metrics for the lifetime of the run when a
// listen address is configured.
func RegisterMetricsServer(lc fx.Lifecycle, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) {
	if cfg.Metrics.ListenAddress == "" {
		return
	}
	s := metrics.NewServer(cfg.Metrics.ListenAddress, m, log.Named("metrics"))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}

// Run builds the application, executes the selected strategies and stops
// the application, releasing the execution context, whatever the outcome.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) error {
	strategies, err := sweep.FromConfig(cfg, opts.Strategy)
	if err != nil {
		return err
	}

	var (
		controller *sweep.Controller
		manager    *accel.Manager
	)
	app := fx.New(
		fx.Supply(cfg, log, opts),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		Module,
		fx.Populate(&controller, &manager),
	)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	info := manager.GetDeviceInfo()
	log.Info("Running benchmark",
		zap.String("backend", info.Backend),
		zap.String("device", info.Name),
		zap.String("features", info.Features),
		zap.Int("threads", info.Threads))

	runErr := controller.Run(ctx, strategies...)

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return errors.Join(runErr, app.Stop(stopCtx))
}
