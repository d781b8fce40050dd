// Command jirasync syncs Jira issues into a vector store per tenant and
// serves a read-only admin surface over the result.
package main

import (
	"os"

	"github.com/evalgo/jirasync/cli"
)

func main() {
	os.Exit(cli.Execute())
}
