package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ARMmbed/mbedtools/internal/boards"
	"github.com/ARMmbed/mbedtools/internal/config"
	"github.com/ARMmbed/mbedtools/internal/devices"
	"github.com/ARMmbed/mbedtools/internal/logger"
	"github.com/ARMmbed/mbedtools/internal/usb"
)

// tracebackVerbosity is the -v count at which errors print with stack traces.
const tracebackVerbosity = 3

var (
	verbosity  int
	configPath string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mbedtools",
	Short: "Detect Mbed boards and run host tests against them",
	Long: `mbedtools finds Mbed development boards connected over USB, identifies
them against the board database and talks to them over their serial port,
either interactively or by driving host tests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		return logger.Init(logger.Config{Level: cfg.LogLevel, Verbosity: verbosity})
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprint(os.Stderr, errorReport(err, verbosity))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase logging verbosity, can be repeated (-vvv prints stack traces)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(detectCmd, stermCmd, hosttestCmd)
}

func newDeviceService() (*devices.Service, error) {
	detector, err := usb.NewDetector(logger.WithComponent("usb"))
	if err != nil {
		return nil, err
	}

	db, err := boards.NewDatabase(boards.Options{
		Mode:         cfg.DatabaseMode,
		APIURL:       cfg.APIURL,
		APIToken:     cfg.APIToken,
		SnapshotPath: cfg.SnapshotPath,
		Logger:       logger.WithComponent("boards"),
	})
	if err != nil {
		return nil, err
	}

	return devices.NewService(detector, db, logger.WithComponent("devices")), nil
}

// resolvePort returns port when given, otherwise the serial port of the
// connected board matching target.
func resolvePort(ctx context.Context, port, target string) (string, error) {
	if port != "" {
		return port, nil
	}

	if target == "" {
		return "", fmt.Errorf("either --port or --mbed-target is required")
	}

	name, identifier, err := parseTarget(target)
	if err != nil {
		return "", err
	}

	service, err := newDeviceService()
	if err != nil {
		return "", err
	}

	device, err := service.FindConnectedDevice(ctx, name, identifier)
	if err != nil {
		return "", err
	}

	if device.SerialPort == "" {
		return "", fmt.Errorf("no serial port found for %s [%s]", device.MbedBoard.BoardType, device.SerialNumber)
	}

	return device.SerialPort, nil
}
