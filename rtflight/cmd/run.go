package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rtflight/config"
	"github.com/sarchlab/rtflight/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the flight testbed until PANIC or an interrupt.",
	Long: "`run` starts every task with the configured scheduling and " +
		"prints a report each interval. Send PANIC over UDP or press " +
		"Ctrl-C to end the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		s, err := supervisor.MakeBuilder().
			WithConfig(cfg).
			WithSignalRelay().
			Build()
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Run %s listening for commands on %s (mode %s)\n",
			s.RunID(), cfg.Command.Listen, cfg.Mode())

		return s.Run(context.Background())
	},
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := config.NewViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}

	file, _ := cmd.Flags().GetString("config")

	return config.Load(v, file)
}

func init() {
	runCmd.Flags().String("config", "", "configuration file (yaml, toml or json)")
	runCmd.Flags().String("env-file", ".env", "file of RTFLIGHT_* variables to load")
	config.RegisterFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
}
