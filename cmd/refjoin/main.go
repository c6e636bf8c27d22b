// Command refjoin validates node type schemas, runs JCR-SQL2 queries
// against a configured repository and runs query scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/refjoin/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
