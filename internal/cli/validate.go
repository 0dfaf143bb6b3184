package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate a configuration file without starting the proxy",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	snap, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", configPath, err)
		os.Exit(1)
	}
	fmt.Printf("%s: ok, %d route(s), %d backend(s)\n", configPath, len(snap.Routes), len(snap.AllBackends()))
	return nil
}
