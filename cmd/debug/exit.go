package debug

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exitCmd = &cobra.Command{
	Use:   "exit",
	Short: "end the debug session",
	Aliases: []string{"quit", "q"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupOthers,
	},
	Run: func(cmd *cobra.Command, args []string) {
		CurrentSession.Stop()
	},
}

func init() {
	debugRootCmd.AddCommand(exitCmd)
}

// Cleanup detaches from the emulator. The program keeps running; the
// emulator drops our breakpoints when the connection closes.
func Cleanup() {
	if Client == nil || !Client.IsConnected() {
		return
	}
	if err := Client.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close session: %v\n", err)
	}
}
