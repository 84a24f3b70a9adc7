// Parking Bridge reads occupancy lines from a parking controller on a serial port
// and serves the current state over HTTP.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parking_bridge",
	Short: "Serial to HTTP bridge for a parking lot controller",
	Long: `parking_bridge reads the newline-terminated status lines a parking controller
prints on its serial port (available slots, slot occupancy, gate states) and
exposes the latest state as JSON over HTTP and a websocket feed.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional, lets PARKING_BRIDGE_* overrides live in a .env file
		_ = godotenv.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
