package main

import (
	"os"

	"github.com/liftlab/liftlab/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
