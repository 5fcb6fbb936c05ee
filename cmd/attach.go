/*
Copyright © 2026 The amidbg authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amidbg/amidbg/cmd/debug"
	"github.com/amidbg/amidbg/pkg/breakpoint"
	"github.com/amidbg/amidbg/pkg/disasm"
	"github.com/amidbg/amidbg/pkg/remote"
	"github.com/amidbg/amidbg/pkg/symbol"
)

// attachCmd represents the attach command
var attachCmd = &cobra.Command{
	Use:   "attach <host:port>",
	Short: "attach to a running emulator debug server",
	Long: `attach to a running emulator debug server.

The emulator must have been started with its remote debugger enabled, e.g.
fs-uae with remote_debugger = 1234. Global labels may be predefined in the
config file under the "labels" key and are usable in address expressions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected the emulator address, host:port")
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		client, err := remote.Dial(args[0], timeout)
		if err != nil {
			return err
		}

		program := symbol.NewProgram()
		for name, value := range viper.GetStringMapString("labels") {
			if v, ok := program.Evaluate(value); ok {
				program.AddLabel(name, v)
			} else {
				fmt.Printf("ignoring label %s: cannot resolve %q\n", name, value)
			}
		}

		disassembler := disasm.NewManager(client, program)
		breakpoints := breakpoint.NewManager(client, program, disassembler, breakpoint.NewSizeStore())
		if mask := viper.GetUint32("exception-mask"); mask != 0 {
			breakpoints.SetExceptionMask(mask)
		}

		client.OnFirstStop(breakpoints.SendAllPendingBreakpoints)
		client.OnStop(breakpoints.CheckTemporaryBreakpoints)
		client.OnStop(func(pc uint32) {
			fmt.Println(disassembler.DisassembleLine(pc, remote.ThreadCPU).Text)
		})

		debug.Attach(client, program, disassembler, breakpoints)

		for _, seg := range client.Segments() {
			fmt.Printf("segment %d at $%x, %d bytes\n", seg.ID, seg.Address, seg.Size)
		}
		return nil
	},
	PostRun: func(cmd *cobra.Command, args []string) {
		debug.CurrentSession = debug.NewDebugSession().AtExit(debug.Cleanup)
		debug.CurrentSession.Start()
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)

	attachCmd.Flags().DurationP("timeout", "t", 5*time.Second, "connect timeout")
}
