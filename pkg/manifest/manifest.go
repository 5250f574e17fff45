// Package manifest renders a human-readable summary of a planned run:
// the target, minute range, per-function RPM totals, distribution and
// backend choice. Operators keep the rendered text next to a run's
// output files to record what the run was configured to do.
package manifest

import (
	"fmt"
	"strings"

	"github.com/faastrace/loadgen/pkg/config"
	"github.com/faastrace/loadgen/pkg/workload"
)

// FunctionSummary is one row's contribution to the manifest.
type FunctionSummary struct {
	Bench    string
	TotalRPM uint64
	Minutes  int
	PeakRPM  uint32
}

// Render builds the manifest text for cfg and the rows it will replay.
func Render(cfg config.Config, rows []workload.FunctionRow) string {
	var sb strings.Builder

	sb.WriteString("[run]\n")
	fmt.Fprintf(&sb, "csv=%s\n", cfg.CSVPath)
	fmt.Fprintf(&sb, "distribution=%s\n", orDefault(cfg.IATKind, "poisson"))
	fmt.Fprintf(&sb, "minutes=%s\n", orDefault(cfg.MinuteRange, "1..65535"))
	fmt.Fprintf(&sb, "seed=%d\n", cfg.Seed)
	fmt.Fprintf(&sb, "invoc_id_start=%d\n", cfg.InvocIDStart)

	sb.WriteString("\n[storage]\n")
	fmt.Fprintf(&sb, "minio_address=%s\n", cfg.MinioAddress)
	fmt.Fprintf(&sb, "minio_bucket=%s\n", cfg.BucketName)

	sb.WriteString("\n[backend]\n")
	fmt.Fprintf(&sb, "kind=%s\n", orDefault(cfg.BackendKind, "noop"))
	if cfg.BackendURL != "" {
		fmt.Fprintf(&sb, "url=%s\n", cfg.BackendURL)
	}
	if cfg.RequestLogPath != "" {
		fmt.Fprintf(&sb, "requests_out=%s\n", cfg.RequestLogPath)
	}
	if cfg.InvocationLogPath != "" {
		fmt.Fprintf(&sb, "invocations_out=%s\n", cfg.InvocationLogPath)
	}
	if cfg.SinkOutPath != "" {
		fmt.Fprintf(&sb, "outfile=%s\n", cfg.SinkOutPath)
	}

	sb.WriteString("\n[functions]\n")
	summaries := Summarize(rows)
	var grandTotal uint64
	for _, s := range summaries {
		fmt.Fprintf(&sb, "%s\tminutes=%d\ttotal_rpm=%d\tpeak_rpm=%d\n", s.Bench, s.Minutes, s.TotalRPM, s.PeakRPM)
		grandTotal += s.TotalRPM
	}
	fmt.Fprintf(&sb, "\ntotal functions: %d\n", len(summaries))
	fmt.Fprintf(&sb, "total planned requests (sum of rpm): %d\n", grandTotal)

	return sb.String()
}

// Summarize reduces each row to its bench id, minute count, RPM total
// and peak RPM, in CSV row order.
func Summarize(rows []workload.FunctionRow) []FunctionSummary {
	out := make([]FunctionSummary, 0, len(rows))
	for _, row := range rows {
		var wreq workload.WorkloadRequest
		bench := "?"
		if err := wreq.UnmarshalJSON([]byte(row.MappedWreq)); err == nil {
			bench = wreq.Bench
		}

		var total uint64
		var peak uint32
		for _, r := range row.RPM {
			total += uint64(r)
			if r > peak {
				peak = r
			}
		}
		out = append(out, FunctionSummary{
			Bench:    bench,
			TotalRPM: total,
			Minutes:  len(row.RPM),
			PeakRPM:  peak,
		})
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
