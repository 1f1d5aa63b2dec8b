// Package main is the entry point for the clusterscaler CLI.
//
// clusterscaler keeps a cluster of nodes sized to the resource demand its
// node agents report: it launches nodes through a pluggable provider,
// provisions them with setup and start commands, and terminates nodes
// that stay idle.
//
// Commands: run, once, validate, status, scale, down, version.
//
// For detailed usage information, run:
//
//	clusterscaler --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
