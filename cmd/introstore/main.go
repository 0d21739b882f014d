// Command introstore inspects and maintains the introduction puzzle store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/introstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
