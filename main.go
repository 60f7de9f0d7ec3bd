package main

import (
	"os"

	"github.com/vmctl-dev/vmctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
