package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ARMmbed/mbedtools/internal/devices"
	"github.com/ARMmbed/mbedtools/internal/display"
)

var (
	showAll      bool
	detectFormat string
	showDetails  bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List connected Mbed boards",
	Long: `Detect scans the USB mass-storage devices attached to this machine and
identifies the Mbed boards among them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if detectFormat != "table" && detectFormat != "json" {
			return fmt.Errorf("unknown format %q: expected table or json", detectFormat)
		}

		service, err := newDeviceService()
		if err != nil {
			return err
		}

		return detectDevices(cmd.Context(), service, os.Stdout)
	},
}

func init() {
	detectCmd.Flags().BoolVarP(&showAll, "show-all", "a", false, "Also list devices that are not Mbed boards")
	detectCmd.Flags().StringVarP(&detectFormat, "format", "f", "table", "Output format: table or json")
	detectCmd.Flags().BoolVarP(&showDetails, "details", "d", false, "Show all interface firmware details")
}

// detectDevices runs one detection pass and writes it to out. Service errors
// are returned as they are; they already say what failed.
func detectDevices(ctx context.Context, service *devices.Service, out io.Writer) error {
	connected, err := service.GetConnectedDevices(ctx)
	if err != nil {
		return err
	}

	if detectFormat == "json" {
		return display.WriteJSON(out, connected, showAll)
	}

	display.NewPrinter(out, showDetails).Print(connected, showAll)

	return nil
}
