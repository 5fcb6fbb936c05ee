package debug

import (
	"fmt"

	"github.com/spf13/cobra"
)

var catchCmd = &cobra.Command{
	Use:   "catch",
	Short: "break on processor exceptions",
	Long: `break on processor exceptions: bus error, address error, illegal
instruction, divide by zero, CHK and TRAPV`,
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		remove, _ := cmd.Flags().GetBool("delete")
		if remove {
			if err := Breakpoints.RemoveExceptionBreakpoint(); err != nil {
				return err
			}
			fmt.Println("exception breakpoint removed")
			return nil
		}

		outcome := Breakpoints.SetExceptionBreakpoint()
		if !outcome.Applied {
			fmt.Printf("exception breakpoint deferred: %s\n", outcome.Reason)
			return nil
		}
		fmt.Println("exception breakpoint set")
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(catchCmd)

	catchCmd.Flags().BoolP("delete", "d", false, "remove the exception breakpoint")
}
