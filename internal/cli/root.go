// Package cli provides the command-line interface for dbscribe.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbscribe/dbscribe/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// API client shared by all commands
	api *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dbscribe",
	Short: "SQL Server documentation generator",
	Long: `Dbscribe documents SQL Server databases: it introspects tables, views,
stored procedures and functions, optionally enriches each object with an
LLM-written analysis, and stores everything in a searchable index.

All commands talk to a running dbscribe-server (see 'dbscribe-server').`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		api = client.New(serverURL)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server-url", "", "dbscribe server URL (default http://localhost:8490)")

	// Add subcommands
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(metricsCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
