package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ARMmbed/mbedtools/internal/logger"
	"github.com/ARMmbed/mbedtools/internal/serialport"
)

var (
	stermPort     string
	stermTarget   string
	stermBaudrate int
	stermEcho     bool
	stermReset    bool
)

var stermCmd = &cobra.Command{
	Use:   "sterm",
	Short: "Open a serial terminal to a connected board",
	Long: `Sterm connects stdin and stdout to a board's serial port. The port is
given directly with --port or looked up from --mbed-target, e.g. K64F or
K64F[1] when several boards of the same type are connected.

Ctrl-B resets the target, Ctrl-E toggles local echo, Ctrl-H prints help.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.WithComponent("serial")

		name, err := resolvePort(ctx, stermPort, stermTarget)
		if err != nil {
			return err
		}

		baud := stermBaudrate
		if baud == 0 {
			baud = cfg.Baudrate
		}

		port, err := serialport.Open(name, baud, cfg.ReadTimeout, log)
		if err != nil {
			return err
		}
		defer port.Close()

		if stermReset {
			if err := port.Reset(); err != nil {
				log.Warn().Err(err).Msg("Unable to reset target")
			}
		}

		fmt.Fprintf(os.Stderr, "--- Terminal on %s at %d baud, Ctrl-H for help ---\n", name, baud)

		return serialport.Terminal(ctx, port, os.Stdin, os.Stdout, stermEcho, log)
	},
}

func init() {
	stermCmd.Flags().StringVarP(&stermPort, "port", "p", "", "Serial port to connect to")
	stermCmd.Flags().StringVarP(&stermTarget, "mbed-target", "m", "", "Board type of the target, optionally with an index: K64F[1]")
	stermCmd.Flags().IntVarP(&stermBaudrate, "baudrate", "b", 0, "Baud rate (default from config, 9600)")
	stermCmd.Flags().BoolVarP(&stermEcho, "echo", "e", false, "Echo typed characters locally")
	stermCmd.Flags().BoolVarP(&stermReset, "reset", "r", false, "Reset the target after connecting")
	stermCmd.MarkFlagsMutuallyExclusive("port", "mbed-target")
}
