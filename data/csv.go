package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoTimeColumn is returned when the requested time column is not in the header
var ErrNoTimeColumn = errors.New("time column not found")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339, common date layouts and unix seconds
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Unix(0, int64(secs*float64(time.Second))).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadCSV loads a table from CSV with a header line. Rows whose timestamp
// cannot be parsed are skipped and counted.
func ReadCSV(r io.Reader, timeColumn string, mode TimeMode) (*Table, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	timeIdx := -1
	for i, h := range header {
		if h == timeColumn {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return nil, 0, fmt.Errorf("%w: %q", ErrNoTimeColumn, timeColumn)
	}

	var rows []Row
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read line %d: %w", len(rows)+skipped+2, err)
		}
		if timeIdx >= len(rec) {
			skipped++
			continue
		}
		ts, err := ParseTime(rec[timeIdx])
		if err != nil {
			skipped++
			continue
		}
		values := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				values[h] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, Row{Time: ts, Values: values})
	}

	return NewTable(header, rows, mode), skipped, nil
}

// LoadCSV reads a CSV file from disk
func LoadCSV(path, timeColumn string, mode TimeMode) (*Table, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadCSV(f, timeColumn, mode)
}
