// Package cmd provides the command-line interface for rtflight.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "rtflight",
	Short: "rtflight benchmarks real-time scheduling policies with a " +
		"simulated flight controller.",
	Long: `rtflight runs a flight control loop, a command listener, a ` +
		`synthetic camera load and an emergency failsafe as real-time ` +
		`threads, and reports how the chosen scheduling policy treats ` +
		`each of them under contention.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Registered exit handlers run before the process exits.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
