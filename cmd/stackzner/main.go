// Package main is the entry point for the stackzner CLI.
//
// stackzner is a command-line tool for deploying small application stacks
// on Hetzner Cloud. It reads a declarative resource manifest, plans the
// dependency order, provisions infrastructure idempotently, distributes
// artifact payloads through time-scoped signed URLs, and gates load
// balancer membership on endpoint health.
//
// Commands: init, deploy, plan, destroy.
//
// For detailed usage information, run:
//
//	stackzner --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/stackzner/cmd/stackzner/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
