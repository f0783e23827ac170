// Package main provides the hl7gen command line. It needs no external
// services: reference data is built in or read from SQLite and override
// sessions live in a SQLite file under the data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hl7-synth-server/internal/config"
	"github.com/hl7-synth-server/internal/setup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := setup.NewCLI(config.LoadLiteConfig())
	if err := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
