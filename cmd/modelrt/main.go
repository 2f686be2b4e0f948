// Command modelrt hosts local language models behind an HTTP API and a
// queue-fed worker.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "modelrt:", err)
		os.Exit(1)
	}
}
