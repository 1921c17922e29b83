package matrix

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"golang.org/x/sync/errgroup"
)

// Element is the reduced-precision storage format used for every operand.
type Element = bfloat16.BFloat16

// ElementSize is the width of one Element in bytes.
const ElementSize = 2

// DefaultSeed is the seed used for every benchmark configuration.
const DefaultSeed uint64 = 47

// ErrInvalidShape is returned for non-positive or overflowing dimensions.
var ErrInvalidShape = errors.New("invalid matrix shape")

// Role identifies which operand a matrix is generated for. Each role draws
// from its own family of random streams.
type Role uint8

const (
	Left Role = iota
	Right
)

func (r Role) String() string {
	switch r {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// FromFloat32 narrows v to an Element.
func FromFloat32(v float32) Element {
	return bfloat16.FromFloat32(v)
}

// Matrix is a dense row-major buffer.
type Matrix struct {
	Rows int
	Cols int
	Data []Element
}

// Generator fills matrices with seeded uniform values in [0, 1).
type Generator struct {
	workers int
}

// NewGenerator returns a Generator that fills rows on up to workers
// goroutines. A non-positive count uses GOMAXPROCS.
func NewGenerator(workers int) *Generator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Generator{workers: workers}
}

// Generate allocates a rows×cols matrix and fills it.
func (g *Generator) Generate(ctx context.Context, rows, cols int, seed uint64, role Role) (*Matrix, error) {
	n, err := Elements(rows, cols)
	if err != nil {
		return nil, err
	}
	m := &Matrix{Rows: rows, Cols: cols, Data: make([]Element, n)}
	if err := g.Fill(ctx, m, seed, role); err != nil {
		return nil, err
	}
	return m, nil
}

// Fill overwrites m with values derived from (seed, role). Each row has its
// own stream, so the result does not depend on the number of workers.
func (g *Generator) Fill(ctx context.Context, m *Matrix, seed uint64, role Role) error {
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("%w: buffer holds %d elements, want %d×%d", ErrInvalidShape, len(m.Data), m.Rows, m.Cols)
	}

	chunk := (m.Rows + g.workers - 1) / g.workers
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for start := 0; start < m.Rows; start += chunk {
		end := min(start+chunk, m.Rows)
		eg.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				fillRow(m.Data[i*m.Cols:(i+1)*m.Cols], seed, role, i)
			}
			return nil
		})
	}
	return eg.Wait()
}

func fillRow(row []Element, seed uint64, role Role, index int) {
	rng := rand.New(rand.NewPCG(seed, uint64(role)<<48|uint64(index)))
	for j := range row {
		row[j] = FromFloat32(float32(rng.Float64()))
	}
}

// Elements returns rows*cols, rejecting non-positive dimensions and overflow.
func Elements(rows, cols int) (int, error) {
	if rows <= 0 || cols <= 0 {
		return 0, fmt.Errorf("%w: %d×%d", ErrInvalidShape, rows, cols)
	}
	if rows > math.MaxInt/cols {
		return 0, fmt.Errorf("%w: %d×%d overflows", ErrInvalidShape, rows, cols)
	}
	return rows * cols, nil
}
