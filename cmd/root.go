package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// configPath is the --config flag value shared by all subcommands.
var configPath string

// rootCmd represents the base command for the tethru application
var rootCmd = &cobra.Command{
	Use:   "tethru",
	Short: "Keeps an external calendar in sync with CRM tasks and contact dates",
	Long: `tethru synchronizes CRM-side schedulable facts (task due dates, contact
birthdays, important dates, follow-up reminders) to a Google Calendar.

Sync is one-directional: CRM to calendar. Events created by the engine carry
a namespace prefix in their summary and are tracked in a local mapping
ledger, so repeated syncs stay idempotent.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tethru version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: tethru.yaml in config dir or cwd)")

	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newDisconnectCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newStatusCmd())
}
