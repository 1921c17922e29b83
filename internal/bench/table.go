package bench

import (
	"bytes"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Headers are the fixed columns of every rendered table.
var Headers = [6]string{"Mode", "N1 / N2 / M", "Data size (MiB)", "Total FLOP", "Duration (ns)", "GFLOPS"}

// Row is one benchmarked configuration.
type Row struct {
	Mode        string
	N1, N2, M   int
	DataSizeMiB float64
	TotalFLOP   uint64
	DurationNs  int64
	GFLOPS      float64
	// Anomaly is set when the measurement cannot be interpreted; GFLOPS is
	// NaN in that case.
	Anomaly string
}

func (r Row) Dims() string {
	return Dims(r.N1, r.N2, r.M)
}

func (r Row) cells() [6]string {
	gflops := strconv.FormatFloat(r.GFLOPS, 'f', 3, 64)
	if r.Anomaly != "" {
		gflops = "n/a (" + r.Anomaly + ")"
	}
	return [6]string{
		r.Mode,
		r.Dims(),
		strconv.FormatFloat(r.DataSizeMiB, 'f', -1, 64),
		strconv.FormatUint(r.TotalFLOP, 10),
		strconv.FormatInt(r.DurationNs, 10),
		gflops,
	}
}

// Table accumulates rows in insertion order. It is not safe for concurrent
// use.
type Table struct {
	rows []Row
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Append(r Row) {
	t.rows = append(t.rows, r)
}

func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the accumulated rows.
func (t *Table) Rows() []Row {
	return append([]Row(nil), t.rows...)
}

// Reset empties the table, keeping its capacity.
func (t *Table) Reset() {
	clear(t.rows)
	t.rows = t.rows[:0]
}

// Print renders the headers and every row. An empty table renders headers
// only.
func (t *Table) Print(w io.Writer) error {
	var buf bytes.Buffer
	tw := tablewriter.NewWriter(&buf)
	tw.SetHeader(Headers[:])
	tw.SetAutoFormatHeaders(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, r := range t.rows {
		cells := r.cells()
		tw.Append(cells[:])
	}
	tw.Render()

	_, err := buf.WriteTo(w)
	return err
}

// PrintAndReset renders the table and then empties it.
func (t *Table) PrintAndReset(w io.Writer) error {
	err := t.Print(w)
	t.Reset()
	return err
}
