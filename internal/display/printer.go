package display

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/ARMmbed/mbedtools/internal/devices"
	"github.com/ARMmbed/mbedtools/internal/hosttest"
)

type Printer struct {
	formatter *Formatter
	out       io.Writer
}

func NewPrinter(out io.Writer, verbose bool) *Printer {
	return &Printer{
		formatter: NewFormatter(verbose),
		out:       out,
	}
}

func (p *Printer) Print(connected devices.ConnectedDevices, showAll bool) {
	showUnidentified := showAll && len(connected.UnidentifiedDevices) > 0

	if len(connected.IdentifiedDevices) == 0 && !showUnidentified {
		p.printNoDevices(len(connected.UnidentifiedDevices))
		return
	}

	if len(connected.IdentifiedDevices) > 0 {
		p.printSection(identifiedHeader, connected.IdentifiedDevices)
	}

	if showUnidentified {
		if len(connected.IdentifiedDevices) > 0 {
			fmt.Fprintln(p.out)
		}
		p.printSection(unidentifiedHeader, connected.UnidentifiedDevices)
	}
}

func (p *Printer) printSection(header string, list []devices.Device) {
	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Fprintln(p.out, header)
	fmt.Fprintln(p.out)

	for i, device := range list {
		p.printDevice(device, i == len(list)-1)
	}
}

func (p *Printer) printNoDevices(unidentified int) {
	warning := color.New(color.FgYellow)
	warning.Fprintln(p.out, NoDevicesMessage)

	if unidentified > 0 {
		fmt.Fprintf(p.out, "\n%d unidentified device(s) connected, use --show-all to list them.\n", unidentified)
	}
}

func (p *Printer) printDevice(device devices.Device, isLast bool) {
	connector := "├── "
	detailPrefix := "│   "
	if isLast {
		connector = "└── "
		detailPrefix = "    "
	}

	treeColor := color.New(color.FgHiBlack)
	nameColor := color.New(color.FgWhite, color.Bold)
	unknownColor := color.New(color.FgYellow)
	serialColor := color.New(color.FgGreen)

	treeColor.Fprint(p.out, connector)
	if device.MbedEnabled {
		nameColor.Fprint(p.out, displayName(device))
	} else {
		unknownColor.Fprint(p.out, displayName(device))
	}
	fmt.Fprint(p.out, " ")
	serialColor.Fprintf(p.out, "[%s]\n", device.SerialNumber)

	p.printDetails(device, detailPrefix)
}

func (p *Printer) printDetails(device devices.Device, prefix string) {
	detailColor := color.New(color.FgHiBlack)
	valueColor := color.New(color.FgCyan)

	details := p.formatter.getDetails(device)
	for i, d := range details {
		branch := "├─ "
		if i == len(details)-1 {
			branch = "└─ "
		}

		fmt.Fprint(p.out, prefix)
		detailColor.Fprintf(p.out, "%s%s: ", branch, d.label)
		valueColor.Fprintln(p.out, d.value)
	}
}

// PrintResults prints one line per host test and a summary.
func (p *Printer) PrintResults(results []hosttest.Result) {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	detailColor := color.New(color.FgHiBlack)

	for _, res := range results {
		if res.Passed {
			pass.Fprint(p.out, "PASS ")
		} else {
			fail.Fprint(p.out, "FAIL ")
		}
		fmt.Fprintf(p.out, "%s ", res.Name)
		detailColor.Fprintf(p.out, "(%s) %s\n", res.Duration.Round(time.Millisecond), res.Reason)
	}

	rep := hosttest.NewReport(results)
	fmt.Fprintf(p.out, "\n%d passed, %d failed\n", rep.Passed, rep.Failed)
}

// WriteJSON writes connected as indented JSON. Unidentified devices are
// left out unless showAll is set.
func WriteJSON(w io.Writer, connected devices.ConnectedDevices, showAll bool) error {
	out := devices.ConnectedDevices{
		IdentifiedDevices:   connected.IdentifiedDevices,
		UnidentifiedDevices: connected.UnidentifiedDevices,
	}

	if out.IdentifiedDevices == nil {
		out.IdentifiedDevices = []devices.Device{}
	}
	if !showAll || out.UnidentifiedDevices == nil {
		out.UnidentifiedDevices = []devices.Device{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode devices: %w", err)
	}

	return nil
}
