package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/faastrace/loadgen/pkg/agent"
	"github.com/faastrace/loadgen/pkg/logging"
)

// runAgentCmd handles "loadgen agent [flags]": a single node in a
// distributed replay, awaiting /run from a cluster coordinator.
func runAgentCmd() {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	port := fs.Int("port", 9000, "Port to listen on")
	fs.Parse(os.Args[2:])

	log := logging.NewLogger()
	defer log.Sync()

	srv := agent.NewServer(log)
	if err := srv.ListenAndServe(*port); err != nil {
		fmt.Printf("agent failed: %v\n", err)
		os.Exit(1)
	}
}
