package main

import (
	"os"

	"github.com/satishbabariya/relq/cmd/relq/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
