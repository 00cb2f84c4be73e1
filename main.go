// The main package for the coreapi executable.
package main

import (
	"github.com/JakeFAU/coreapi/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
