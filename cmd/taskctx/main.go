// Command taskctx serves ranked task and transcript context over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "taskctx:", err)
		os.Exit(1)
	}
}
