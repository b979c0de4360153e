// Command fpgalower lowers neural network models for oneAPI FPGAs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fpgalower/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
