package debug

import (
	"github.com/spf13/cobra"
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "execute one instruction",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	Aliases: []string{"s"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return Client.Step()
	},
}

func init() {
	debugRootCmd.AddCommand(stepCmd)
}
