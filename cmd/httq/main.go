package main

import (
	"os"

	"github.com/TheusHen/HTTQ/cmd/httq/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
