package debug

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear <file>",
	Short: "clear all breakpoints of a file",
	Long:  `clear all breakpoints of a source file or disassembly view`,
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one file")
		}

		if err := Breakpoints.ClearBreakpoints(args[0]); err != nil {
			return err
		}
		fmt.Printf("cleared breakpoints of %s\n", args[0])
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(clearCmd)
}
