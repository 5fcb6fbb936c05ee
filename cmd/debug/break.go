package debug

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var breakCmd = &cobra.Command{
	Use:   "break <locspec>",
	Short: "add a breakpoint",
	Long: `add a breakpoint at a location.

supported locspec forms:
- an address expression: $c00276, 0xc00276, label, label+8
- file:lineno, where file may be a source file or a disassembly
  view such as seg_0.dbgasm`,
	Aliases: []string{"b", "breakpoint"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {

		if len(args) != 1 {
			return errors.New("expected one location")
		}
		locStr := args[0]

		// try parse as file:lineno
		if file, lineno, err := parseFileLineno(locStr); err == nil {
			bp := Breakpoints.CreateBreakpoint(file, lineno)
			reportOutcome(bp.ID, locStr, Breakpoints.SetBreakpoint(bp))
			return nil
		}

		// otherwise it must be an address expression
		address, ok := Symbols.Evaluate(locStr)
		if !ok {
			return fmt.Errorf("invalid location %q", locStr)
		}
		bp := Breakpoints.CreateInstructionBreakpoint(address)
		reportOutcome(bp.ID, locStr, Breakpoints.SetBreakpoint(bp))
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(breakCmd)
}

func parseFileLineno(locStr string) (string, int, error) {
	idx := strings.LastIndex(locStr, ":")
	if idx <= 0 || idx == len(locStr)-1 {
		return "", 0, fmt.Errorf("invalid locspec %q", locStr)
	}
	lineno, err := strconv.Atoi(locStr[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid lineno in %q: %v", locStr, err)
	}
	return locStr[:idx], lineno, nil
}
