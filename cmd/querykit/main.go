// Command querykit validates CUE entity schemas and plans and runs dynamic
// filter requests against SQLite or PostgreSQL.
package main

import (
	"os"

	"github.com/roach88/querykit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
