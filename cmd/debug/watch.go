package debug

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amidbg/amidbg/pkg/breakpoint"
)

var watchCmd = &cobra.Command{
	Use:   "watch <address>",
	Short: "watch a memory range for accesses",
	Long: `watch a memory range for accesses.

The address is an expression; custom chip registers work as plain
addresses, e.g. watch $dff180 -m write.`,
	Aliases: []string{"w"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one address")
		}

		var (
			size, _ = cmd.Flags().GetUint32("size")
			mode, _ = cmd.Flags().GetString("mode")
		)

		var access breakpoint.Access
		switch mode {
		case "read":
			access = breakpoint.AccessRead
		case "write":
			access = breakpoint.AccessWrite
		case "rw":
			access = breakpoint.AccessReadWrite
		default:
			return fmt.Errorf("invalid mode %q, want read, write or rw", mode)
		}

		address, ok := Symbols.Evaluate(args[0])
		if !ok {
			return fmt.Errorf("cannot resolve address of %q", args[0])
		}

		bp := Breakpoints.CreateDataBreakpoint(address, size, access, "watch "+args[0])
		reportOutcome(bp.ID, args[0], Breakpoints.SetBreakpoint(bp))
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Uint32P("size", "n", 2, "watched range in bytes")
	watchCmd.Flags().StringP("mode", "m", "write", "access mode: read, write or rw")
}
