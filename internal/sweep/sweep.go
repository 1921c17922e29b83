package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/accel"
	"github.com/fxnlabs/perf-amx/internal/bench"
	"github.com/fxnlabs/perf-amx/internal/config"
)

const (
	StrategyAll    = "all"
	StrategySquare = "square"
	StrategyRect   = "rect"
)

// Point is one configuration to benchmark.
type Point struct {
	Op        accel.Op
	N1, N2, M int
}

// Pass is an ordered run of points whose rows share one table.
type Pass []Point

// Strategy is a named sequence of passes. The table is printed and reset
// after every pass.
type Strategy struct {
	Name   string
	Passes []Pass
}

// Len returns the number of configurations in the strategy.
func (s Strategy) Len() int {
	n := 0
	for _, p := range s.Passes {
		n += len(p)
	}
	return n
}

// Square runs every size with N1=N2=M, first in inner-product mode and then
// in matrix-multiply mode, as two tables.
func Square(sizes []int) Strategy {
	ip := make(Pass, 0, len(sizes))
	gemm := make(Pass, 0, len(sizes))
	for _, size := range sizes {
		ip = append(ip, Point{Op: accel.InnerProduct, N1: size, N2: size, M: size})
		gemm = append(gemm, Point{Op: accel.MatMul, N1: size, N2: size, M: size})
	}
	return Strategy{Name: StrategySquare, Passes: []Pass{ip, gemm}}
}

// Rect runs inner-product mode over tall right operands with a fixed M.
// All multipliers run for one N1 before the next N1.
func Rect(n1s, multipliers []int, n2Base, m int) Strategy {
	pass := make(Pass, 0, len(n1s)*len(multipliers))
	for _, n1 := range n1s {
		for _, mult := range multipliers {
			pass = append(pass, Point{Op: accel.InnerProduct, N1: n1, N2: n2Base * mult, M: m})
		}
	}
	return Strategy{Name: StrategyRect, Passes: []Pass{pass}}
}

// FromConfig builds the strategies selected by name, in run order.
func FromConfig(cfg *config.Config, name string) ([]Strategy, error) {
	square := Square(cfg.Sweeps.Square.Sizes)
	rect := Rect(cfg.Sweeps.Rect.N1s, cfg.Sweeps.Rect.N2Multipliers, cfg.Sweeps.Rect.N2Base, cfg.Sweeps.Rect.M)
	switch name {
	case StrategyAll, "":
		return []Strategy{square, rect}, nil
	case StrategySquare:
		return []Strategy{square}, nil
	case StrategyRect:
		return []Strategy{rect}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want %s, %s or %s)", name, StrategyAll, StrategySquare, StrategyRect)
	}
}

// Runner benchmarks single configurations. *bench.Driver implements it.
type Runner interface {
	Run(ctx context.Context, op accel.Op, n1, n2, m int) (bench.Row, error)
	PrintAndReset(w io.Writer) error
}

// Controller drives a Runner through strategies one configuration at a time.
type Controller struct {
	runner Runner
	out    io.Writer
	abort  bool
	log    *zap.Logger
}

// NewController writes tables to out. onError is config.OnErrorSkip or
// config.OnErrorAbort.
func NewController(runner Runner, out io.Writer, onError string, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		runner: runner,
		out:    out,
		abort:  onError == config.OnErrorAbort,
		log:    log,
	}
}

// Run executes the strategies in order.
func (c *Controller) Run(ctx context.Context, strategies ...Strategy) error {
	for _, s := range strategies {
		if err := c.RunStrategy(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// RunStrategy executes every pass of s, printing one table per pass.
// Failed configurations are skipped and listed under the table unless the
// controller aborts on error. Cancellation and running out of memory always
// stop the run.
func (c *Controller) RunStrategy(ctx context.Context, s Strategy) error {
	log := c.log.With(zap.String("strategy", s.Name))
	log.Info("Starting sweep", zap.Int("configurations", s.Len()))

	for _, pass := range s.Passes {
		var skipped []error
		for _, p := range pass {
			if err := ctx.Err(); err != nil {
				return c.finish(skipped, err)
			}
			_, err := c.runner.Run(ctx, p.Op, p.N1, p.N2, p.M)
			if err == nil {
				continue
			}
			if c.abort || fatal(err) {
				return c.finish(skipped, err)
			}
			log.Warn("skipping configuration", zap.Error(err))
			skipped = append(skipped, err)
		}
		if err := c.finish(skipped, nil); err != nil {
			return err
		}
	}

	log.Info("Sweep finished")
	return nil
}

// fatal reports errors that stop the run under either policy: cancellation
// and a configuration that does not fit in memory.
func fatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, bench.ErrInsufficientMemory)
}

// finish prints the table and skip summary of the current pass and returns
// cause, or the write error when there is no cause.
func (c *Controller) finish(skipped []error, cause error) error {
	err := c.runner.PrintAndReset(c.out)
	for _, s := range skipped {
		if _, werr := fmt.Fprintf(c.out, "skipped %v\n", s); werr != nil && err == nil {
			err = werr
		}
	}
	if cause != nil {
		return cause
	}
	return err
}
