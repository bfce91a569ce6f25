package main

import (
	"fmt"
	"os"

	"github.com/roach88/classver/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "classver:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
