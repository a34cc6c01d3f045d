// Command repolex builds and queries a semantic graph of Go source
// repositories: stable entity identity across versions, git provenance,
// change events between versions, and streaming export of the graph.
package main

import (
	"os"

	"github.com/repolex-dev/repolex/cli"
)

func main() {
	os.Exit(cli.Execute())
}
