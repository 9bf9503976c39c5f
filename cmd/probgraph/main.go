// Command probgraph compiles, analyses and samples probabilistic models.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/probgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own errors; usage errors from cobra are not.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
