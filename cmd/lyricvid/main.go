// Package main provides the entry point for the lyricvid command line.
package main

import (
	"os"

	"github.com/maauso/lyricvid/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
