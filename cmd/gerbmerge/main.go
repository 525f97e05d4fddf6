// gerbmerge merges the Gerber and Excellon files of several boards into one
// panel.
//
// Build:
//
//	go build -o gerbmerge ./cmd/gerbmerge
//
// Usage:
//
//	gerbmerge panel.yaml                          # search for a placement
//	gerbmerge panel.yaml layout.txt               # manual row layout
//	gerbmerge --place-file merged.placement.txt panel.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gerbmerge:", err)
		stop()
		os.Exit(1)
	}
}
