package main

import (
	"github.com/chazu/yarnvm/lsp"
)

const version = "0.1.0"

// handleLspCommand processes the `yarn lsp` subcommand. It serves on
// stdio until the editor disconnects.
func handleLspCommand() {
	if err := lsp.New(version).RunStdio(); err != nil {
		fatalf("language server: %v", err)
	}
}
