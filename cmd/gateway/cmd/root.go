// Package cmd contains the CLI commands of the gateway binary.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "OpenAI-compatible chat completion gateway",
	Long: `gateway serves an OpenAI-compatible API (/v1/models and
/v1/chat/completions) and forwards every call to a configured upstream
provider, optionally requiring a bearer API key from callers.

Examples:
  # Serve with defaults on 0.0.0.0:8000
  gateway run

  # Serve with a configuration file
  gateway run --config /etc/gateway/config.yaml

Environment Variables:
  GATEWAY_*  Override configuration file values (e.g. GATEWAY_BIND, GATEWAY_API_KEY)
  A .env file in the working directory is loaded before the configuration.`,
	Version:      version + " (" + buildTime + ")",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
}
