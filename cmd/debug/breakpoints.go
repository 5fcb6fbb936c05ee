package debug

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amidbg/amidbg/pkg/breakpoint"
)

var breaksCmd = &cobra.Command{
	Use:     "breaks",
	Short:   "list all breakpoints",
	Long:    "list all breakpoints, installed and pending",
	Aliases: []string{"bs", "breakpoints"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	Run: func(cmd *cobra.Command, args []string) {
		for _, bp := range Breakpoints.ActiveBreakpoints() {
			fmt.Println(formatBreakpoint(bp, ""))
		}
		for _, bp := range Breakpoints.PendingBreakpoints() {
			fmt.Println(formatBreakpoint(bp, " (pending)"))
		}
	},
}

func init() {
	debugRootCmd.AddCommand(breaksCmd)
}

func formatBreakpoint(bp *breakpoint.Breakpoint, tag string) string {
	location := ""
	switch {
	case bp.Kind == breakpoint.KindData:
		location = fmt.Sprintf("$%x size %d %s", bp.Offset, bp.Size, bp.Access)
	case bp.Source != "":
		location = fmt.Sprintf("%s:%d", bp.Source, bp.Line)
	case bp.SegmentID >= 0:
		location = fmt.Sprintf("seg %d + $%x", bp.SegmentID, bp.Offset)
	default:
		location = fmt.Sprintf("$%x", bp.Offset)
	}

	line := fmt.Sprintf("#%-4d %-12s %s%s", bp.ID, bp.Kind, location, tag)
	if bp.Message != "" {
		line += " - " + bp.Message
	}
	return line
}

// reportOutcome prints the result of a breakpoint submission.
func reportOutcome(id uint64, location string, outcome breakpoint.Outcome) {
	if outcome.Applied {
		fmt.Printf("breakpoint #%d at %s\n", id, location)
		return
	}
	fmt.Printf("breakpoint #%d deferred: %s\n", id, outcome.Reason)
}
