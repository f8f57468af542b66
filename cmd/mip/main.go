package main

import (
	"os"

	"github.com/jebjergk/MIP-sub000/cmd/mip/commands"
)

// main is the entry point for the MIP CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/mip [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
