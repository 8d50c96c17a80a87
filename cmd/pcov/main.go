// Package main implements the pcov CLI. It builds path coverage graphs for
// Go sources, records probe traces against them and reports the results.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/l3aro/go-pathcov/cmd/pcov/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`pcov version {{.Version}}
`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := commands.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
