package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chahine-tech/edgeproxy/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the edgeproxy version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildinfo.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
