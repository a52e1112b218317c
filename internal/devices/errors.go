package devices

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoBoardForCandidate means no resolution step found the device in the
// board database. The device is reported as unidentified.
var ErrNoBoardForCandidate = errors.New("no board found for candidate device")

// ResolveBoardError is a board database failure met while resolving a device.
// It aborts the detection pass instead of demoting the device.
type ResolveBoardError struct {
	SerialNumber string
	Err          error
}

func (e *ResolveBoardError) Error() string {
	return fmt.Sprintf("failed to resolve board for device %s: %v", e.SerialNumber, e.Err)
}

func (e *ResolveBoardError) Unwrap() error { return e.Err }

// DeviceLookupFailedError is returned when a target name does not pick out
// exactly one device. Devices lists everything that was detected.
type DeviceLookupFailedError struct {
	Reason  string
	Devices ConnectedDevices
	Err     error
}

func (e *DeviceLookupFailedError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
		return b.String()
	}

	if len(e.Devices.IdentifiedDevices) == 0 {
		b.WriteString("\nNo identified devices are connected.")
		return b.String()
	}

	b.WriteString("\nDetected devices:")
	for _, d := range e.Devices.IdentifiedDevices {
		fmt.Fprintf(&b, "\n  %s  serial=%s", d.MbedBoard.BoardType, d.SerialNumber)
		if d.SerialPort != "" {
			fmt.Fprintf(&b, "  port=%s", d.SerialPort)
		}
		if len(d.MountPoints) > 0 {
			fmt.Fprintf(&b, "  mount=%s", strings.Join(d.MountPoints, ","))
		}
	}

	return b.String()
}

func (e *DeviceLookupFailedError) Unwrap() error { return e.Err }
