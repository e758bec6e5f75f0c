// Package main is the entry point for the youcube application.
package main

import (
	"os"

	"github.com/jmylchreest/youcube/cmd/youcube/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
