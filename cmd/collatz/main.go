// Command collatz verifies the Collatz conjecture above a proven threshold.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/collatz/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
