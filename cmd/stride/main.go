// Package main is the single-binary entrypoint for Stride.
package main

import "github.com/stridefit/stride/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
