/*
main.go - CLI entry point

PURPOSE:
  Wires the root cobra command and dispatches to its subcommands.
  Server startup lives in the `serve` subcommand's RunE (see serve.go),
  leaving room for the CLI to grow (e.g. a future `version` command).

SEE ALSO:
  - serve.go: the `serve` subcommand
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "kvengine",
		Short: "Typed key-value engine with a durable transaction log",
	}
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
