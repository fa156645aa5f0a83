package main

import (
	"os"

	"github.com/wonny/stratbook/cmd/stratbook/commands"
)

// main is the entry point for the stratbook CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stratbook [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
