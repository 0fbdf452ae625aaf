package main

import (
	"os"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
