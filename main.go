// The main package for the scorer executable.
package main

import (
	"github.com/JakeFAU/ai-readiness-scorer/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
