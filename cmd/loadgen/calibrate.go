package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/faastrace/loadgen/pkg/backend"
	"github.com/faastrace/loadgen/pkg/calibrate"
	"github.com/faastrace/loadgen/pkg/client"
	"github.com/faastrace/loadgen/pkg/csvsource"
	"github.com/faastrace/loadgen/pkg/logging"
	"github.com/faastrace/loadgen/pkg/workload"
)

// countingBackend wraps another Backend and counts every Issue call as
// attempted or failed, so an eval trial can compute an error rate
// regardless of which sink -backend selected.
type countingBackend struct {
	backend.Backend
	attempted, failed *uint64
}

func (c countingBackend) Issue(ctx context.Context, invocationID string, wreq *workload.WorkloadRequest, minute uint16, budget time.Duration) error {
	atomic.AddUint64(c.attempted, 1)
	err := c.Backend.Issue(ctx, invocationID, wreq, minute, budget)
	if err != nil {
		atomic.AddUint64(c.failed, 1)
	}
	return err
}

func (c countingBackend) Clone() backend.Backend {
	return countingBackend{Backend: c.Backend.Clone(), attempted: c.attempted, failed: c.failed}
}

// runCalibrateCmd handles "loadgen calibrate [flags]": either an
// in-flight-budget hill climb (-mode=tune) or an RPM-multiplier sweep
// for the degradation knee (-mode=sweep, the default).
func runCalibrateCmd() {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	f := SetupFlags(fs)
	mode := fs.String("mode", "sweep", "tune (in-flight budget hill climb) or sweep (RPM multiplier sweep)")
	multipliersFlag := fs.String("multipliers", "1,2,3,4,5,8,12", "Comma-separated RPM multipliers to sweep")
	tolerance := fs.Float64("tolerance", 0.05, "Relative error tolerance for the linear-region fit")
	minWidth := fs.Int("min-width", 1, "Minimum in-flight budget to try, in -mode=tune")
	maxWidth := fs.Int("max-width", 256, "Maximum in-flight budget to try, in -mode=tune")
	fs.Parse(os.Args[2:])

	cfg, err := f.ResolveConfig()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	rows, err := csvsource.Load(cfg.CSVPath)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewLogger()
	defer log.Sync()

	minuteRange, err := cfg.ResolveMinuteRange()
	if err != nil {
		log.Fatalw("invalid minute range", "error", err)
	}
	iatKind, err := cfg.ResolveIATKind()
	if err != nil {
		log.Fatalw("invalid distribution", "error", err)
	}

	// trial runs one full replay of rows (optionally RPM-scaled by
	// multiplier) against a freshly built backend wrapped in -in-flight
	// budget width, returning the observed error rate.
	trial := func(scaledRows []workload.FunctionRow, width int) (float64, error) {
		path, err := writeScratchCSV(scaledRows)
		if err != nil {
			return 0, err
		}
		defer os.Remove(path)

		inner, err := buildBackend(cfg)
		if err != nil {
			return 0, err
		}
		var attempted, failed uint64
		b := backend.Backend(countingBackend{Backend: inner, attempted: &attempted, failed: &failed})
		if width > 0 {
			b = backend.NewBounded(b, width)
		}

		c, err := client.New(client.Config{
			CSVPath:      path,
			MinuteRange:  minuteRange,
			IATKind:      iatKind,
			Seed:         client.FixedSeed(cfg.Seed),
			InvocIDStart: cfg.InvocIDStart,
			MinioAddress: cfg.MinioAddress,
			BucketName:   cfg.BucketName,
			Backend:      b,
			Log:          log,
		})
		if err != nil {
			return 0, err
		}
		if _, err := c.Run(nil); err != nil {
			return 0, err
		}
		if attempted == 0 {
			return 0, nil
		}
		return float64(failed) / float64(attempted), nil
	}

	switch *mode {
	case "tune":
		result, err := calibrate.Tune(*minWidth, *maxWidth, func(width int) (float64, error) {
			rate, err := trial(rows, width)
			fmt.Printf("width=%d error_rate=%.4f\n", width, rate)
			return rate, err
		})
		if err != nil {
			fmt.Printf("tune failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n>>> Tune complete <<<\nin-flight budget: %d (error rate %.4f)\n", result.Width, result.ErrorRate)

	case "sweep":
		multipliers, err := parseMultipliers(*multipliersFlag)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			os.Exit(1)
		}
		result, err := calibrate.Sweep(multipliers, *tolerance, func(m float64) (float64, error) {
			rate, err := trial(scaleRows(rows, m), 0)
			fmt.Printf("multiplier=%.2f error_rate=%.4f\n", m, rate)
			return rate, err
		})
		if err != nil {
			fmt.Printf("sweep failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n>>> Sweep complete <<<\n")
		fmt.Printf("knee at multiplier %.2f (error rate %.4f)\n", result.Knee.X, result.Knee.Y)
		fmt.Printf("sustained linear region: %.2f%% of samples, slope %.5f\n", result.Linear.Coverage*100, result.Linear.Slope)

	default:
		fmt.Printf("unknown -mode %q: want tune or sweep\n", *mode)
		os.Exit(1)
	}
}

func parseMultipliers(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid multiplier %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// scaleRows returns a copy of rows with every RPM value scaled by m and
// rounded to the nearest integer.
func scaleRows(rows []workload.FunctionRow, m float64) []workload.FunctionRow {
	out := make([]workload.FunctionRow, len(rows))
	for i, row := range rows {
		scaled := make([]uint32, len(row.RPM))
		for j, r := range row.RPM {
			scaled[j] = uint32(float64(r)*m + 0.5)
		}
		row.RPM = scaled
		out[i] = row
	}
	return out
}

// writeScratchCSV renders rows back into the "avg,mapped_wreq,rpm"
// format csvsource.Load expects, for a trial run that should not
// disturb the caller's original trace file.
func writeScratchCSV(rows []workload.FunctionRow) (string, error) {
	tmp, err := os.CreateTemp("", "loadgen-calibrate-*.csv")
	if err != nil {
		return "", fmt.Errorf("calibrate: create scratch csv: %w", err)
	}
	defer tmp.Close()

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"avg", "mapped_wreq", "rpm"}); err != nil {
		return "", err
	}
	for _, row := range rows {
		rpmJSON, err := json.Marshal(row.RPM)
		if err != nil {
			return "", err
		}
		if err := w.Write([]string{
			strconv.FormatFloat(row.Pavg, 'g', -1, 64),
			row.MappedWreq,
			string(rpmJSON),
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("calibrate: write scratch csv: %w", err)
	}
	return tmp.Name(), nil
}
