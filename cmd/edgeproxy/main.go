// Command edgeproxy is a configurable reverse proxy and edge server.
package main

import (
	"os"

	"github.com/chahine-tech/edgeproxy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
