package main

import (
	"fmt"
	"os"

	"github.com/stackctl/stackctl/cmd/stackctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stackctl: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}
