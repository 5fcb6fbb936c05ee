package debug

import (
	"github.com/spf13/cobra"
)

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "run until the next breakpoint",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	Aliases: []string{"c"},
	RunE: func(cmd *cobra.Command, args []string) error {
		// blocks until the target stops; the stop handlers report where
		return Client.Continue()
	},
}

func init() {
	debugRootCmd.AddCommand(continueCmd)
}
