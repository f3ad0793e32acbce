// The main package for the qfrontier executable.
package main

import (
	"github.com/qfrontier/qfrontier/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
