package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/supercheck/core/cmd/supercheck/commands"
)

var rootCmd = &cobra.Command{
	Use:   "supercheck",
	Short: "supercheck - scheduled test jobs and uptime monitoring",
	Long: `supercheck runs scheduled browser-test jobs and recurring uptime
monitors, firing alerts on job failures, monitor status transitions, and
SSL certificate expiry.

Available commands:
  serve    - Start the scheduler, workers, heartbeat receiver, and janitor
  migrate  - Apply pending database migrations
  version  - Show build information`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config file (default: searches standard locations)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
