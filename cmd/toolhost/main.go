// Command toolhost manages tool provider processes declared in a YAML
// host file and invokes their tools from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "toolhost",
	Short: "Tool server host CLI",
	Long:  "toolhost launches, inspects, and calls tool provider processes declared in toolhost.yaml.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to toolhost.yaml (default: ./toolhost.yaml, ~/.toolhost/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("toolhost version %s\n", version))

	rootCmd.AddCommand(newServersCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newCallCmd())
}
