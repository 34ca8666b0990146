package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
)

var (
	// Global flags
	cfgFile    string
	policyPath string
	logLevel   string
	logFormat  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Gatekeeper - policy gates and deterministic document correction",
	Long: `Gatekeeper evaluates documents against regulatory policy gates and
synthesizes deterministic corrections until they comply.

Policy bundles declare the gates, the remediation templates that fix them and
the explicit mapping between the two. A synthesis run evaluates every gate,
applies the best remediation for each failure, and repeats until the document
converges, stalls, or reaches its iteration bound. Runs are recorded in the
audit store with a verifiable hash chain.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the status derived from its
// error.
func Execute() {
	err := rootCmd.Execute()
	if err != nil && !cli.Silent(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&policyPath, "policy", "p", "", "policy bundle file or directory (overrides policy.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides telemetry.logging.level)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json, text (overrides telemetry.logging.format)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
}
