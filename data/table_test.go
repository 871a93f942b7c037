package data

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

const sample = `timestamp,user_id,action,amount
2024-01-01T00:00:10Z,u2,buy,30
2024-01-01T00:00:00Z,u1,view,10
2024-01-01T00:00:40Z,u1,buy,50
not-a-date,u3,view,1
2024-01-01T00:00:20Z,u3,view,
`

func TestReadCSVSortsAndSkips(t *testing.T) {
	tbl, skipped, err := ReadCSV(strings.NewReader(sample), "timestamp", TimeTempoBasic)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if tbl.Len() != 4 {
		t.Fatalf("len = %d, want 4", tbl.Len())
	}
	wantUsers := []string{"u1", "u2", "u3", "u1"}
	for i, want := range wantUsers {
		if got := tbl.Row(i).Values["user_id"]; got != want {
			t.Errorf("row %d user = %q, want %q", i, got, want)
		}
	}
	if tbl.Span() != 40*time.Second {
		t.Errorf("span = %v", tbl.Span())
	}
}

func TestReadCSVMissingTimeColumn(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(sample), "when", TimeTempoBasic)
	if !errors.Is(err, ErrNoTimeColumn) {
		t.Fatalf("err = %v, want ErrNoTimeColumn", err)
	}
}

func TestTFactorModes(t *testing.T) {
	tests := []struct {
		mode TimeMode
		want []float64
	}{
		{TimeTempoBasic, []float64{0, 0.25, 0.5, 0.75}},
		{TimeLinear, []float64{0, 0.25, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			tbl, _, err := ReadCSV(strings.NewReader(sample), "timestamp", tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			for i, want := range tt.want {
				if got := tbl.Row(i).TFactor; math.Abs(got-want) > 1e-9 {
					t.Errorf("row %d tfactor = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestCursor(t *testing.T) {
	tbl, _, _ := ReadCSV(strings.NewReader(sample), "timestamp", TimeTempoBasic)

	rows, ok := tbl.NextBatch(3)
	if !ok || len(rows) != 3 {
		t.Fatalf("first batch = %d rows ok=%v", len(rows), ok)
	}
	if tbl.Exhausted() {
		t.Fatal("exhausted too early")
	}
	rows, ok = tbl.NextBatch(3)
	if !ok || len(rows) != 1 {
		t.Fatalf("second batch = %d rows ok=%v", len(rows), ok)
	}
	if !tbl.Exhausted() {
		t.Fatal("expected exhausted")
	}
	if _, ok := tbl.NextBatch(3); ok {
		t.Fatal("expected end marker")
	}

	tbl.SeekTo(0.5)
	if tbl.Cursor() != 2 {
		t.Errorf("cursor after seek = %d, want 2", tbl.Cursor())
	}
	tbl.Reset()
	if tbl.Cursor() != 0 || tbl.Exhausted() {
		t.Error("reset did not rewind")
	}
}

func TestRangeAndDistinct(t *testing.T) {
	tbl, _, _ := ReadCSV(strings.NewReader(sample), "timestamp", TimeTempoBasic)

	lo, hi, ok := tbl.Range("amount")
	if !ok || lo != 10 || hi != 50 {
		t.Errorf("range = %v..%v ok=%v", lo, hi, ok)
	}
	if _, _, ok := tbl.Range("action"); ok {
		t.Error("non-numeric column should have no range")
	}
	got := tbl.Distinct("action")
	if len(got) != 2 || got[0] != "view" || got[1] != "buy" {
		t.Errorf("distinct = %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts, err := ParseTime("1700000000")
	if err != nil {
		t.Fatal(err)
	}
	if ts.Unix() != 1700000000 {
		t.Errorf("unix = %d", ts.Unix())
	}
}
