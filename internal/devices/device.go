package devices

import (
	"github.com/ARMmbed/mbedtools/internal/boards"
)

// Device is a detected board paired with the result of resolving its
// identity. MbedEnabled is true only when the board database knew it, in
// which case MbedBoard is set; otherwise MbedBoard is the empty board.
type Device struct {
	MbedBoard    boards.Board `json:"mbed_board"`
	SerialNumber string       `json:"serial_number"`
	SerialPort   string       `json:"serial_port,omitempty"`
	MountPoints  []string     `json:"mount_points"`
	MbedEnabled  bool         `json:"mbed_enabled"`
	Interface    Interface    `json:"interface_details,omitempty"`
}

// Interface describes the debug interface firmware as reported by the files
// it exposes on the mass-storage drive.
type Interface struct {
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ConnectedDevices is the result of one detection pass.
type ConnectedDevices struct {
	IdentifiedDevices   []Device `json:"identified_devices"`
	UnidentifiedDevices []Device `json:"unidentified_devices"`
}

// AddDevice files d under exactly one of the two lists, by MbedEnabled.
func (c *ConnectedDevices) AddDevice(d Device) {
	if d.MbedEnabled {
		c.IdentifiedDevices = append(c.IdentifiedDevices, d)
		return
	}
	c.UnidentifiedDevices = append(c.UnidentifiedDevices, d)
}

func (c ConnectedDevices) Len() int {
	return len(c.IdentifiedDevices) + len(c.UnidentifiedDevices)
}
