package main

import (
	"fmt"
	"os"

	"github.com/roach88/ttp/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ttp:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
