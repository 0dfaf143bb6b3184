package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const banner = `
  ___ _ __ _  __ _ __  _ __ _____ ___  _
 / _ \ '__/ |/ /' _ \/ _ \_  __/ _ \ \/ /
|  __/ |  | | (_| | (_) |\ \| (_) >  <
 \___|_|  |_|\__,_|\___/ |_|  \___/_/\_\
`

var (
	configPath string
	logLevel   string
	logPretty  bool
)

var rootCmd = &cobra.Command{
	Use:           "edgeproxy",
	Short:         "A configurable reverse proxy and edge server",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI, printing the banner on cobra's own help output
// so `edgeproxy --help`, `edgeproxy`, and `edgeproxy <bad-command>`
// all behave the way a normal Cobra-based CLI does, without any
// access-gating in front of it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return nil
}

func init() {
	cyan := color.New(color.FgCyan, color.Bold)
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		cyan.Fprint(os.Stderr, banner)
		defaultHelp(cmd, args)
	})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", true, "Use a human-readable console log format instead of JSON")
}
