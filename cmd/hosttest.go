package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ARMmbed/mbedtools/internal/display"
	"github.com/ARMmbed/mbedtools/internal/hosttest"
	"github.com/ARMmbed/mbedtools/internal/logger"
	"github.com/ARMmbed/mbedtools/internal/serialport"
)

var (
	htPort    string
	htTarget  string
	htTest    string
	htPlan    string
	htReport  string
	htReset   bool
	htTimeout time.Duration
	htParams  map[string]string
)

var hosttestCmd = &cobra.Command{
	Use:   "hosttest",
	Short: "Run host tests against a connected board",
}

var hosttestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available host tests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range hosttest.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

var hosttestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one host test or a plan of host tests",
	Long: `Run drives host tests over the board's serial port. With --test a single
host test runs; with --plan every test in the YAML plan file runs in order.
With neither, the device names its host test with __host_test_name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.WithComponent("hosttest")

		var plan hosttest.Plan
		switch {
		case htPlan != "":
			var err error
			if plan, err = hosttest.LoadPlan(htPlan); err != nil {
				return err
			}
		default:
			if htTest != "" {
				factory, err := hosttest.Lookup(htTest)
				if err != nil {
					return fmt.Errorf("%w, available: %v", err, hosttest.Names())
				}
				if _, err := factory(htParams); err != nil {
					return err
				}
			}
			plan = hosttest.Plan{Tests: []hosttest.PlanEntry{{Name: htTest, Params: htParams, Reset: htReset}}}
		}

		name, err := resolvePort(ctx, htPort, htTarget)
		if err != nil {
			return err
		}

		port, err := serialport.Open(name, cfg.Baudrate, cfg.ReadTimeout, logger.WithComponent("serial"))
		if err != nil {
			return err
		}
		defer port.Close()

		runner := hosttest.NewRunner(port, hosttest.RunnerOptions{
			ResetSettle: cfg.ResetSettle,
			SyncRetries: cfg.SyncRetries,
			Timeout:     htTimeout,
		}, log)

		results := runner.RunPlan(ctx, plan)
		display.NewPrinter(os.Stdout, false).PrintResults(results)

		report := hosttest.NewReport(results)
		if htReport != "" {
			if err := hosttest.WriteReport(htReport, report); err != nil {
				return err
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !report.OK() {
			return fmt.Errorf("%d of %d host tests failed", report.Failed, len(results))
		}

		return nil
	},
}

func init() {
	hosttestRunCmd.Flags().StringVarP(&htPort, "port", "p", "", "Serial port of the target")
	hosttestRunCmd.Flags().StringVarP(&htTarget, "mbed-target", "m", "", "Board type of the target, optionally with an index: K64F[1]")
	hosttestRunCmd.Flags().StringVarP(&htTest, "test", "t", "", "Host test to run (see hosttest list)")
	hosttestRunCmd.Flags().StringVar(&htPlan, "plan", "", "YAML plan file listing host tests to run")
	hosttestRunCmd.Flags().StringVar(&htReport, "report", "", "Write a JSON report to this file")
	hosttestRunCmd.Flags().BoolVar(&htReset, "reset", false, "Reset the target before the test")
	hosttestRunCmd.Flags().DurationVar(&htTimeout, "timeout", hosttest.DefaultTestTimeout, "Time allowed per host test unless the device sets __timeout")
	hosttestRunCmd.Flags().StringToStringVar(&htParams, "param", nil, "Host test parameter as key=value, can be repeated")
	hosttestRunCmd.MarkFlagsMutuallyExclusive("port", "mbed-target")
	hosttestRunCmd.MarkFlagsMutuallyExclusive("test", "plan")

	hosttestCmd.AddCommand(hosttestListCmd, hosttestRunCmd)
}
