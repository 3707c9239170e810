// Package main is the entry point for the mengram CLI.
//
// Usage:
//
//	mengram [flags] <command> [args]
//
// Commands:
//
//	add      - Ingest text into a user's memory
//	search   - Semantic search with structured results
//	recall   - Assembled context for an agent prompt
//	get      - Show one entity
//	list     - List every entity
//	stats    - Vault, graph, and index statistics
//	delete   - Remove an entity
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/alibaizhanov/mengram/cmd/mengram/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
