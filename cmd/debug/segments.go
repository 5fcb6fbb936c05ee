package debug

import (
	"fmt"

	"github.com/spf13/cobra"
)

var segmentsCmd = &cobra.Command{
	Use:     "segments",
	Short:   "list the segments of the loaded program",
	Aliases: []string{"segs"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	Run: func(cmd *cobra.Command, args []string) {
		for _, seg := range Client.Segments() {
			fmt.Printf("segment %d at $%x, %d bytes\n", seg.ID, seg.Address, seg.Size)
		}
	},
}

func init() {
	debugRootCmd.AddCommand(segmentsCmd)
}
