package debug

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var examineCmd = &cobra.Command{
	Use:     "examine <address>",
	Short:   "dump target memory",
	Aliases: []string{"x"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected one address")
		}
		length, _ := cmd.Flags().GetInt("length")

		address, ok := Symbols.Evaluate(args[0])
		if !ok {
			return fmt.Errorf("cannot resolve address of %q", args[0])
		}

		data, err := Client.GetMemory(address, length)
		if err != nil {
			return err
		}

		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			fmt.Printf("%08x: % x\n", address+uint32(i), data[i:end])
		}
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(examineCmd)

	examineCmd.Flags().IntP("length", "n", 64, "bytes to dump")
}
