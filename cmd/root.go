// Package cmd provides the command-line interface of ftlsim.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the ftlsim command with all its subcommands.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "ftlsim",
		Short: "ftlsim simulates a flash translation layer on a NAND SSD.",
		Long: `ftlsim maps host sectors onto a simulated NAND array with a ` +
			`page-mapped, block-mapped, or hybrid translation layer, runs a ` +
			`workload against it, and reports latency, garbage collection, ` +
			`and write amplification.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./ftlsim.yaml, then the user config directory)")

	configPath := func() string { return cfgFile }

	rootCmd.AddCommand(newRunCmd(configPath))
	rootCmd.AddCommand(newConfigCmd(configPath))
	rootCmd.AddCommand(newReportCmd())

	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}
