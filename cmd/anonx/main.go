package main

import (
	"os"

	"github.com/billaspace/anonxmusic/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
