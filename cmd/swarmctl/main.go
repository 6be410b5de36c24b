// swarmctl is the command-line interface for coordinating peer Claude
// agents sharing a project root.
package main

import (
	"os"

	"github.com/claude-swarm/swarm/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
