package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/app"
	"github.com/fxnlabs/perf-amx/internal/config"
	"github.com/fxnlabs/perf-amx/internal/logger"
	"github.com/fxnlabs/perf-amx/internal/sweep"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "perfamx",
		Usage: "Intel AMX Benchmark: bf16 inner product and GEMM throughput across matrix sizes",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug mode",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load sweep configuration from `FILE` instead of the built-in defaults",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Value: sweep.StrategyAll,
				Usage: fmt.Sprintf("Sweep to run: %s, %s or %s", sweep.StrategyAll, sweep.StrategySquare, sweep.StrategyRect),
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Stop at the first failed configuration instead of skipping it",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on `ADDR` while the benchmark runs",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return err
		}
	}
	if c.Bool("fail-fast") {
		cfg.Bench.OnError = config.OnErrorAbort
	}
	if addr := c.String("metrics-addr"); addr != "" {
		cfg.Metrics.ListenAddress = addr
	}

	debug := c.Bool("debug")
	zapLogger, err := logger.New(cfg.Logger.Verbosity, debug)
	if err != nil {
		return err
	}
	defer zapLogger.Sync() //nolint:errcheck
	log := zapLogger.Named("perfamx")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	banner := figure.NewFigure("perf-amx", "", true)
	fmt.Fprintln(c.App.Writer, banner.String())

	err = app.Run(ctx, cfg, log, app.Options{
		Debug:    debug,
		Strategy: c.String("strategy"),
		Out:      c.App.Writer,
	})
	if err != nil {
		log.Error("benchmark failed", zap.Error(err))
	}
	return err
}
