package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/faastrace/loadgen/pkg/report"
)

// runReportCmd handles "loadgen report -in requests.jsonl -out
// achieved.csv": reconstruct the achieved-RPM curve from a request log
// written by -backend=log, for comparing offered load against what the
// sink actually absorbed.
func runReportCmd() {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "Request log written by -backend=log (JSON lines)")
	out := fs.String("out", "achieved.csv", "Path to write the achieved-RPM CSV to")
	fs.Parse(os.Args[2:])

	if *in == "" {
		fmt.Println("error: -in is required")
		os.Exit(1)
	}

	samples, err := report.ReadSamples(*in)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	points := report.AchievedRate(samples)
	if err := report.WriteCSV(*out, points); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("achieved-rate report written to %s (%d samples, %d points)\n", *out, len(samples), len(points))
}
