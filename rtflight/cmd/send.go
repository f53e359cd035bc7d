package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rtflight/command"
)

var sendCmd = &cobra.Command{
	Use:   "send VERB...",
	Short: "Send commands to a running testbed.",
	Long: "`send UP UP FRONT` sends each verb as one datagram. Known verbs: " +
		verbList() + ".",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		force, _ := cmd.Flags().GetBool("force")

		verbs := make([]command.Verb, 0, len(args))
		for _, a := range args {
			v := command.Verb(a)
			if !v.Valid() && !force {
				return fmt.Errorf("unknown verb %q (use --force to send anyway)", a)
			}

			verbs = append(verbs, v)
		}

		return command.Send(addr, verbs...)
	},
}

func verbList() string {
	names := make([]string, len(command.Verbs))
	for i, v := range command.Verbs {
		names[i] = string(v)
	}

	return strings.Join(names, ", ")
}

func init() {
	sendCmd.Flags().String("addr", "127.0.0.1:8080", "address of the testbed")
	sendCmd.Flags().Bool("force", false, "send verbs the testbed does not know")

	rootCmd.AddCommand(sendCmd)
}
