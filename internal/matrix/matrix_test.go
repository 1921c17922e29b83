package matrix

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// at returns the element at row i, column j widened to float32.
func at(m *Matrix, i, j int) float32 {
	return m.Data[i*m.Cols+j].Float32()
}

func sizeBytes(m *Matrix) uint64 {
	return uint64(len(m.Data)) * ElementSize
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	g := NewGenerator(4)

	a, err := g.Generate(ctx, 37, 53, DefaultSeed, Left)
	require.NoError(t, err)
	b, err := g.Generate(ctx, 37, 53, DefaultSeed, Left)
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)
}

func TestGenerate_IndependentOfWorkerCount(t *testing.T) {
	ctx := context.Background()

	reference, err := NewGenerator(1).Generate(ctx, 101, 17, DefaultSeed, Right)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 64, 500} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			m, err := NewGenerator(workers).Generate(ctx, 101, 17, DefaultSeed, Right)
			require.NoError(t, err)
			assert.Equal(t, reference.Data, m.Data)
		})
	}
}

func TestGenerate_RolesAndSeedsDiffer(t *testing.T) {
	ctx := context.Background()
	g := NewGenerator(2)

	left, err := g.Generate(ctx, 8, 8, DefaultSeed, Left)
	require.NoError(t, err)
	right, err := g.Generate(ctx, 8, 8, DefaultSeed, Right)
	require.NoError(t, err)
	other, err := g.Generate(ctx, 8, 8, DefaultSeed+1, Left)
	require.NoError(t, err)

	assert.NotEqual(t, left.Data, right.Data)
	assert.NotEqual(t, left.Data, other.Data)
}

func TestGenerate_PrefixRowsStable(t *testing.T) {
	// Row values depend only on the row index, not on how many rows exist.
	ctx := context.Background()
	g := NewGenerator(3)

	small, err := g.Generate(ctx, 4, 16, DefaultSeed, Left)
	require.NoError(t, err)
	large, err := g.Generate(ctx, 40, 16, DefaultSeed, Left)
	require.NoError(t, err)

	assert.Equal(t, small.Data, large.Data[:len(small.Data)])
}

func TestGenerate_Range(t *testing.T) {
	m, err := NewGenerator(0).Generate(context.Background(), 64, 64, DefaultSeed, Left)
	require.NoError(t, err)

	var sum float64
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			v := at(m, i, j)
			require.GreaterOrEqual(t, v, float32(0))
			require.LessOrEqual(t, v, float32(1))
			sum += float64(v)
		}
	}
	// Uniform [0,1) has mean 0.5.
	assert.InDelta(t, 0.5, sum/float64(len(m.Data)), 0.05)
	assert.Equal(t, uint64(64*64*ElementSize), sizeBytes(m))
}

func TestGenerate_InvalidShape(t *testing.T) {
	g := NewGenerator(1)
	testCases := []struct {
		name       string
		rows, cols int
	}{
		{"zero rows", 0, 4},
		{"zero cols", 4, 0},
		{"negative", -1, 4},
		{"overflow", math.MaxInt / 2, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := g.Generate(context.Background(), tc.rows, tc.cols, DefaultSeed, Left)
			assert.ErrorIs(t, err, ErrInvalidShape)
			assert.Nil(t, m)
		})
	}
}

func TestFill_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Matrix{Rows: 16, Cols: 16, Data: make([]Element, 256)}
	err := NewGenerator(2).Fill(ctx, m, DefaultSeed, Left)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFill_BufferMismatch(t *testing.T) {
	m := &Matrix{Rows: 4, Cols: 4, Data: make([]Element, 15)}
	err := NewGenerator(1).Fill(context.Background(), m, DefaultSeed, Left)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "left", Left.String())
	assert.Equal(t, "right", Right.String())
	assert.Equal(t, "role(7)", Role(7).String())
}

func BenchmarkGenerator_Fill(b *testing.B) {
	for _, size := range []int{256, 1024} {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			g := NewGenerator(0)
			m := &Matrix{Rows: size, Cols: size, Data: make([]Element, size*size)}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := g.Fill(context.Background(), m, DefaultSeed, Left); err != nil {
					b.Fatal(err)
				}
			}
			b.ReportMetric(float64(sizeBytes(m))/(1<<20), "MiB")
		})
	}
}
