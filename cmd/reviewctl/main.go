package main

import (
	"os"

	"github.com/maraichr/reviewgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
