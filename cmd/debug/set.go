package debug

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <address> <hexbytes>",
	Short: "write target memory",
	Long: `write target memory, e.g. set $dff180 0fff to poke a color
register`,
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupOthers,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return errors.New("expected an address and hex bytes")
		}

		address, ok := Symbols.Evaluate(args[0])
		if !ok {
			return fmt.Errorf("cannot resolve address of %q", args[0])
		}

		data, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("invalid hex bytes %q: %v", args[1], err)
		}

		if err := Client.SetMemory(address, data); err != nil {
			return err
		}
		fmt.Printf("wrote %d byte(s) at $%x\n", len(data), address)
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(setCmd)
}
