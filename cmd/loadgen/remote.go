package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/faastrace/loadgen/pkg/cluster"
	"github.com/faastrace/loadgen/pkg/csvsource"
)

// runRemoteCmd handles "loadgen remote -nodes host1:9000,host2:9000
// [flags]": split the trace's function rows across a fixed list of
// agent nodes and sum their totals, the distributed counterpart of
// runLocalCmd.
func runRemoteCmd() {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	f := SetupFlags(fs)
	nodesFlag := fs.String("nodes", "", "Comma-separated agent nodes, e.g. host1:9000,host2:9000")
	fs.Parse(os.Args[2:])

	if *nodesFlag == "" {
		fmt.Println("error: -nodes is required for remote mode")
		os.Exit(1)
	}

	cfg, err := f.ResolveConfig()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	f.maybeWriteConfig(cfg)

	rows, err := csvsource.Load(cfg.CSVPath)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	nodes := strings.Split(*nodesFlag, ",")
	fmt.Printf("dispatching %d function rows across %d nodes...\n", len(rows), len(nodes))

	c := cluster.New(nodes)
	total, err := c.Run(*cfg, rows)
	if err != nil {
		fmt.Printf("remote run failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("total requests issued: %d\n", total)
}
