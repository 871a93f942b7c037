package data

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// TimeMode decides how row timestamps become tfactors
type TimeMode string

const (
	// TimeTempoBasic spaces rows evenly: every row gets the same share of
	// the performance regardless of its timestamp.
	TimeTempoBasic TimeMode = "tempo-basic"
	// TimeLinear keeps the ratios of temporal distances between rows.
	TimeLinear TimeMode = "linear"
)

// ParseTimeMode accepts the names used in config files
func ParseTimeMode(s string) (TimeMode, error) {
	switch TimeMode(s) {
	case "", TimeTempoBasic:
		return TimeTempoBasic, nil
	case TimeLinear:
		return TimeLinear, nil
	}
	return "", fmt.Errorf("unknown time mode %q", s)
}

// Row is one timestamped record
type Row struct {
	Index   int
	Time    time.Time
	TFactor float64 // normalized position, [0,1]
	Values  map[string]string
}

// Get returns the raw value of a column
func (r Row) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok && v != ""
}

// Float parses a column as a number
func (r Row) Float(column string) (float64, bool) {
	v, ok := r.Get(column)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Table is an in-memory, time-sorted set of rows with a read cursor
type Table struct {
	columns []string
	rows    []Row
	mode    TimeMode

	mu     sync.Mutex
	cursor int
}

// NewTable sorts rows by time and assigns tfactors according to mode
func NewTable(columns []string, rows []Row, mode TimeMode) *Table {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	for i := range sorted {
		sorted[i].Index = i
		sorted[i].TFactor = tfactor(sorted, i, mode)
	}

	return &Table{
		columns: columns,
		rows:    sorted,
		mode:    mode,
	}
}

func tfactor(rows []Row, i int, mode TimeMode) float64 {
	n := len(rows)
	if n <= 1 {
		return 0
	}
	if mode == TimeLinear {
		first, last := rows[0].Time, rows[n-1].Time
		span := last.Sub(first)
		if span > 0 {
			return float64(rows[i].Time.Sub(first)) / float64(span)
		}
	}
	return float64(i) / float64(n)
}

// Columns returns the column names
func (t *Table) Columns() []string {
	return t.columns
}

// Mode returns the time mode
func (t *Table) Mode() TimeMode {
	return t.mode
}

// Len returns the row count
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns a row by index
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// Span returns the time between first and last row
func (t *Table) Span() time.Duration {
	if len(t.rows) == 0 {
		return 0
	}
	return t.rows[len(t.rows)-1].Time.Sub(t.rows[0].Time)
}

// NextBatch returns up to n rows and advances the cursor. ok is false once
// the table is exhausted.
func (t *Table) NextBatch(n int) (rows []Row, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cursor >= len(t.rows) {
		return nil, false
	}
	if n < 1 {
		n = 1
	}
	end := t.cursor + n
	if end > len(t.rows) {
		end = len(t.rows)
	}
	rows = t.rows[t.cursor:end]
	t.cursor = end
	return rows, true
}

// Exhausted reports whether every row has been read
func (t *Table) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor >= len(t.rows)
}

// Reset rewinds the cursor
func (t *Table) Reset() {
	t.mu.Lock()
	t.cursor = 0
	t.mu.Unlock()
}

// Cursor returns the index of the next row to be read
func (t *Table) Cursor() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// SeekTo moves the cursor to the first row at or after position p
func (t *Table) SeekTo(p float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor = sort.Search(len(t.rows), func(i int) bool {
		return t.rows[i].TFactor >= p
	})
}

// Range returns the numeric min and max of a column
func (t *Table) Range(column string) (lo, hi float64, ok bool) {
	for _, r := range t.rows {
		v, isNum := r.Float(column)
		if !isNum {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, ok
}

// Distinct returns the distinct values of a column in first-seen order
func (t *Table) Distinct(column string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.rows {
		v, ok := r.Get(column)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
