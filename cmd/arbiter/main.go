package main

import (
	"os"

	"github.com/arbiterhq/arbiter/cmd/arbiter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
