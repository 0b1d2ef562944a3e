// Package main provides the entry point for the Vintage Presence companion.
package main

import (
	"fmt"
	"os"
)

func main() {
	app := newCLIApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
