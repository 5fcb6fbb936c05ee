package debug

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amidbg/amidbg/pkg/remote"
)

var frameCmd = &cobra.Command{
	Use:   "frame [address]",
	Short: "show the stack frame for an address",
	Long: `show the stack frame for an address, defaulting to the current
stop address. For Copper addresses the frame names the containing
Copper list and the instruction line within it.`,
	Aliases: []string{"f"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			thread, _ = cmd.Flags().GetInt("thread")
			pos, _    = cmd.Flags().GetInt("pos")
		)

		address := Client.LastStopPC()
		if len(args) == 1 {
			v, ok := Symbols.Evaluate(args[0])
			if !ok {
				return fmt.Errorf("cannot resolve address of %q", args[0])
			}
			address = v
		}

		frame := Disasm.GetStackFrame(pos, address, thread)
		fmt.Printf("#%d %s\n", frame.Index, frame.Label)
		if frame.Source != nil {
			fmt.Printf("    %s:%d\n", frame.Source.Name(), frame.Line)
		} else if frame.Line > 0 {
			segmentID, _ := Client.ToRelativeOffset(address)
			fmt.Printf("    segment %d, line %d\n", segmentID, frame.Line)
		}
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(frameCmd)

	frameCmd.Flags().IntP("thread", "t", remote.ThreadCPU, "thread id, 1=cpu 2=copper")
	frameCmd.Flags().IntP("pos", "p", 0, "stack position of the frame")
}
