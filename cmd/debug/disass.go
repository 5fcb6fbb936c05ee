package debug

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amidbg/amidbg/pkg/disasm"
)

var disassCmd = &cobra.Command{
	Use:   "disass [expression]",
	Short: "disassemble machine instructions",
	Long: `disassemble machine instructions.

Without flags the window starts at the current stop address. With -c the
bytes are decoded as Copper instructions, and the expressions 1 and 2
select the live Copper lists. With -s a whole segment is decoded.`,
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSource,
	},
	Aliases: []string{"dis", "disassemble"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			length, _  = cmd.Flags().GetInt("length")
			offset, _  = cmd.Flags().GetInt("offset")
			copper, _  = cmd.Flags().GetBool("copper")
			segment, _ = cmd.Flags().GetInt("segment")
		)

		var (
			instrs []disasm.Instruction
			err    error
		)
		switch {
		case segment >= 0:
			instrs, err = Disasm.DisassembleSegment(segment)
		case len(args) == 1:
			instrs, err = Disasm.DisassembleAddress(args[0], length, offset, copper)
		default:
			expr := fmt.Sprintf("$%x", Client.LastStopPC())
			instrs, err = Disasm.DisassembleAddress(expr, length, offset, copper)
		}
		if err != nil {
			return err
		}

		for _, instr := range instrs {
			fmt.Printf("%08x: %s\n", instr.Address, instr.Text)
		}
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(disassCmd)

	disassCmd.Flags().IntP("length", "n", 40, "window length in bytes")
	disassCmd.Flags().IntP("offset", "o", 0, "offset added to the resolved address")
	disassCmd.Flags().BoolP("copper", "c", false, "decode as Copper instructions")
	disassCmd.Flags().IntP("segment", "s", -1, "disassemble a whole segment")
}
