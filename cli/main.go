package main

import (
	"os"

	"github.com/dataferry/connector/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
