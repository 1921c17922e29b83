package bench

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/accel"
	"github.com/fxnlabs/perf-amx/internal/matrix"
	"github.com/fxnlabs/perf-amx/internal/metrics"
)

// AnomalyNonPositiveDuration marks rows whose kernel reported a duration
// of zero or less.
const AnomalyNonPositiveDuration = "non-positive duration"

// Executor runs one kernel call on the shared execution context.
// *accel.Manager implements it.
type Executor interface {
	Execute(ctx context.Context, op accel.Op, a, b *matrix.Matrix, n1, n2, m int) (int64, error)
	WorkspaceBytes(op accel.Op, n1, n2, m int) uint64
	Label() string
}

// ConfigError ties a failure to the configuration that caused it.
type ConfigError struct {
	Mode string
	Dims string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Mode, e.Dims, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Hooks for tests.
var (
	freeOSMemory = debug.FreeOSMemory
	systemMemory = accel.SystemMemory
)

// availableMemory returns the host's available memory after handing the
// operands of earlier configurations back to the OS, so the reading is not
// lowered by heap the runtime has freed but still holds.
func availableMemory() uint64 {
	freeOSMemory()
	_, available := systemMemory()
	return available
}

type Options struct {
	Seed uint64
	// MemoryLimit caps operand plus workspace bytes per configuration. Zero
	// uses the available host memory at the time of each run.
	MemoryLimit uint64
	Workers     int
}

// Driver times one kernel call per configuration and owns the results table.
type Driver struct {
	exec    Executor
	gen     *matrix.Generator
	seed    uint64
	limit   func() uint64
	table   *Table
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewDriver(exec Executor, opts Options, m *metrics.Metrics, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	limit := func() uint64 { return opts.MemoryLimit }
	if opts.MemoryLimit == 0 {
		limit = availableMemory
	}
	return &Driver{
		exec:    exec,
		gen:     matrix.NewGenerator(opts.Workers),
		seed:    opts.Seed,
		limit:   limit,
		table:   NewTable(),
		metrics: m,
		log:     log,
	}
}

// Label returns the mode label of op, e.g. "IP / AMX".
func (d *Driver) Label(op accel.Op) string {
	return fmt.Sprintf("%s / %s", op, d.exec.Label())
}

// Table returns the results table owned by the driver.
func (d *Driver) Table() *Table {
	return d.table
}

// Run benchmarks op at (n1, n2, m) and appends the row to the table. A
// failed configuration returns a *ConfigError and appends nothing.
func (d *Driver) Run(ctx context.Context, op accel.Op, n1, n2, m int) (Row, error) {
	label := d.Label(op)
	fail := func(err error) (Row, error) {
		d.metrics.Failed(label)
		return Row{}, &ConfigError{Mode: label, Dims: Dims(n1, n2, m), Err: err}
	}

	flop, err := TotalFLOP(n1, n2, m)
	if err != nil {
		return fail(err)
	}

	need := operandBytes(n1, n2, m)
	if ws := d.exec.WorkspaceBytes(op, n1, n2, m); need+ws < need {
		need = math.MaxUint64
	} else {
		need += ws
	}
	if limit := d.limit(); limit > 0 && need > limit {
		return fail(fmt.Errorf("%w: need %d MiB, limit %d MiB", ErrInsufficientMemory, need>>20, limit>>20))
	}

	a, err := d.gen.Generate(ctx, n1, m, d.seed, matrix.Left)
	if err != nil {
		return fail(fmt.Errorf("generate left operand: %w", err))
	}
	rows, cols := op.RightShape(n2, m)
	b, err := d.gen.Generate(ctx, rows, cols, d.seed, matrix.Right)
	if err != nil {
		return fail(fmt.Errorf("generate right operand: %w", err))
	}

	dur, err := d.exec.Execute(ctx, op, a, b, n1, n2, m)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrKernel, err))
	}

	row := Row{
		Mode:        label,
		N1:          n1,
		N2:          n2,
		M:           m,
		DataSizeMiB: DataSizeMiB(n1, n2, m),
		TotalFLOP:   flop,
		DurationNs:  dur,
	}
	var ok bool
	if row.GFLOPS, ok = GFLOPS(flop, dur); !ok {
		row.Anomaly = AnomalyNonPositiveDuration
		d.log.Warn("measurement anomaly",
			zap.String("mode", label),
			zap.String("dims", row.Dims()),
			zap.Int64("duration_ns", dur))
	}

	d.table.Append(row)
	d.metrics.Observe(label, row.Dims(), row.DataSizeMiB, dur, row.GFLOPS, row.Anomaly != "")
	d.log.Debug("configuration done",
		zap.String("mode", label),
		zap.String("dims", row.Dims()),
		zap.Int64("duration_ns", dur),
		zap.Float64("gflops", row.GFLOPS))
	return row, nil
}

// PrintAndReset renders the accumulated rows to w and clears the table.
func (d *Driver) PrintAndReset(w io.Writer) error {
	return d.table.PrintAndReset(w)
}
