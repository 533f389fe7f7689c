package main

import (
	"os"

	"github.com/notevec/notevec/cmd/notevec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
