// Package cli implements the aiplanner command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "aiplanner",
	Version: "dev",
	Short:   "Scheduling service with conflict detection and wellness advice",
	Long: `aiplanner keeps a set of timed tasks, finds free slots for new ones,
flags overlaps and suggests breaks when a day gets too dense.

Run "aiplanner serve" for the HTTP API or "aiplanner report" to check a
plain-text plan from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: "service", Title: "Service:"})
	rootCmd.AddGroup(&cobra.Group{ID: "planning", Title: "Planning:"})

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the aiplanner version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	})
}
