package main

import (
	"os"

	"github.com/travelties/service_layer/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
