// Command treeq compiles, optimizes and runs queries over JSON documents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/treeq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
