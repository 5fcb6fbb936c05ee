package debug

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amidbg/amidbg/pkg/breakpoint"
)

var untilCmd = &cobra.Command{
	Use:   "until <address>...",
	Short: "run until one of the given addresses",
	Long: `run until one of the given addresses is reached.

The addresses become a temporary breakpoint group: hitting any of them
removes the whole group.`,
	Aliases: []string{"u"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("expected at least one address")
		}

		members := make([]*breakpoint.Breakpoint, 0, len(args))
		for _, arg := range args {
			address, ok := Symbols.Evaluate(arg)
			if !ok {
				return fmt.Errorf("cannot resolve address of %q", arg)
			}
			members = append(members, Breakpoints.CreateTemporaryBreakpoint(address))
		}

		group, err := Breakpoints.AddTemporaryBreakpointGroup(members)
		if err != nil {
			// leave nothing half installed
			if rerr := Breakpoints.RemoveTemporaryBreakpointGroup(group); rerr != nil {
				fmt.Printf("remove temporary group: %v\n", rerr)
			}
			return err
		}

		return Client.Continue()
	},
}

func init() {
	debugRootCmd.AddCommand(untilCmd)
}
