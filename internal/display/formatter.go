package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ARMmbed/mbedtools/internal/devices"
)

const (
	NoDevicesMessage   = "No connected Mbed devices found."
	identifiedHeader   = "Mbed Devices:"
	unidentifiedHeader = "Unidentified Devices:"
	unknownBoardName   = "Unknown device"
	noneValue          = "<none>"
)

type detail struct {
	label string
	value string
}

type Formatter struct {
	verbose bool
}

func NewFormatter(verbose bool) *Formatter {
	return &Formatter{verbose: verbose}
}

func (f *Formatter) FormatDevice(device devices.Device, isLast bool) []string {
	var lines []string

	connector := "├── "
	detailPrefix := "│   "
	if isLast {
		connector = "└── "
		detailPrefix = "    "
	}

	lines = append(lines, connector+f.getDeviceString(device))

	details := f.getDetails(device)
	for i, d := range details {
		branch := "├─ "
		if i == len(details)-1 {
			branch = "└─ "
		}
		lines = append(lines, fmt.Sprintf("%s%s%s: %s", detailPrefix, branch, d.label, d.value))
	}

	return lines
}

func (f *Formatter) getDeviceString(device devices.Device) string {
	return fmt.Sprintf("%s [%s]", displayName(device), device.SerialNumber)
}

func displayName(device devices.Device) string {
	b := device.MbedBoard
	switch {
	case !device.MbedEnabled:
		return unknownBoardName
	case b.BoardName != "" && b.BoardType != "" && !strings.EqualFold(b.BoardName, b.BoardType):
		return fmt.Sprintf("%s (%s)", b.BoardName, b.BoardType)
	case b.BoardType != "":
		return b.BoardType
	default:
		return b.BoardName
	}
}

func (f *Formatter) getDetails(device devices.Device) []detail {
	details := []detail{
		{"Serial port", orNone(device.SerialPort)},
		{"Mount point(s)", orNone(strings.Join(device.MountPoints, ", "))},
	}

	if device.MbedEnabled {
		details = append(details, detail{"Build target(s)", orNone(strings.Join(buildTargets(device), ", "))})
	}

	if device.Interface.Version != "" {
		details = append(details, detail{"Interface version", device.Interface.Version})
	}

	if f.verbose {
		keys := make([]string, 0, len(device.Interface.Details))
		for k := range device.Interface.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			details = append(details, detail{k, device.Interface.Details[k]})
		}
	}

	return details
}

// buildTargets lists BOARD_TYPE followed by BOARD_TYPE_<variant> for each
// build variant.
func buildTargets(device devices.Device) []string {
	b := device.MbedBoard
	if b.BoardType == "" {
		return nil
	}

	targets := []string{b.BoardType}
	for _, v := range b.BuildVariant {
		targets = append(targets, b.BoardType+"_"+v)
	}
	return targets
}

func orNone(s string) string {
	if s == "" {
		return noneValue
	}
	return s
}

func (f *Formatter) formatSection(header string, list []devices.Device) []string {
	lines := []string{header, ""}
	for i, device := range list {
		lines = append(lines, f.FormatDevice(device, i == len(list)-1)...)
	}
	return lines
}

// FormatDevices renders the identified devices, and the unidentified ones
// as well when showAll is set.
func (f *Formatter) FormatDevices(connected devices.ConnectedDevices, showAll bool) string {
	showUnidentified := showAll && len(connected.UnidentifiedDevices) > 0

	if len(connected.IdentifiedDevices) == 0 && !showUnidentified {
		return NoDevicesMessage
	}

	var allLines []string
	if len(connected.IdentifiedDevices) > 0 {
		allLines = append(allLines, f.formatSection(identifiedHeader, connected.IdentifiedDevices)...)
	}

	if showUnidentified {
		if len(allLines) > 0 {
			allLines = append(allLines, "")
		}
		allLines = append(allLines, f.formatSection(unidentifiedHeader, connected.UnidentifiedDevices)...)
	}

	return strings.Join(allLines, "\n")
}
