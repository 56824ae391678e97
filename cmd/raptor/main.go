package main

import (
	"os"

	"github.com/raptorlabs/raptor/cmd/raptor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
