// Package csvsource produces a sequence of workload.FunctionRow from a
// trace CSV file: one header line (skipped), then one record per
// function with fields "avg,mapped_wreq,rpm".
package csvsource

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/faastrace/loadgen/pkg/workload"
)

// Load reads every function row out of path. rpm is expected to be a
// JSON-encoded array of non-negative integers (e.g. "[10,20,30]"), the
// most common CSV-friendly encoding for a variable-length integer column.
func Load(path string) ([]workload.FunctionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvsource: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	// Discard the header line.
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("csvsource: %s is empty", path)
		}
		return nil, fmt.Errorf("csvsource: read header: %w", err)
	}

	var rows []workload.FunctionRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvsource: read record: %w", err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("csvsource: row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (workload.FunctionRow, error) {
	var row workload.FunctionRow
	var pavg float64
	if _, err := fmt.Sscanf(rec[0], "%g", &pavg); err != nil {
		return row, fmt.Errorf("bad avg %q: %w", rec[0], err)
	}
	row.Pavg = pavg
	row.MappedWreq = rec[1]

	var rpm []uint32
	if err := json.Unmarshal([]byte(rec[2]), &rpm); err != nil {
		return row, fmt.Errorf("bad rpm %q: %w", rec[2], err)
	}
	row.RPM = rpm
	return row, nil
}
