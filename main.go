package main

import (
	"os"

	"github.com/gitter-badger/pithos/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
