package debug

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amidbg/amidbg/pkg/breakpoint"
)

var clearallCmd = &cobra.Command{
	Use:   "clearall",
	Short: "clear all breakpoints",
	Long:  `clear all breakpoints of every kind`,
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var firstErr error

		seen := map[string]bool{}
		for _, bp := range Breakpoints.ActiveBreakpoints() {
			if bp.Kind != breakpoint.KindSource || seen[bp.Source] {
				continue
			}
			seen[bp.Source] = true
			if err := Breakpoints.ClearBreakpoints(bp.Source); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		if err := Breakpoints.ClearInstructionBreakpoints(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := Breakpoints.ClearDataBreakpoints(); err != nil && firstErr == nil {
			firstErr = err
		}

		if firstErr != nil {
			return firstErr
		}
		fmt.Println("all breakpoints cleared")
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(clearallCmd)
}
