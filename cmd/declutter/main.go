// Package main provides the declutter CLI, the front end of the declutterd
// tab policy daemon.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
