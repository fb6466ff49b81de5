// Command ragchat is the entry point for the ragchat document Q&A engine.
// It provides a CLI interface (via Cobra) and an optional HTTP server for
// serving grounded answers over an indexed document collection.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragchat-go/cmd/ragchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
