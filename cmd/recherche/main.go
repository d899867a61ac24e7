package main

import (
	"os"

	"github.com/kailas-cloud/recherche/cmd/recherche/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
