package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidProductID    = errors.New("invalid product id")
	ErrInvalidVendorID     = errors.New("invalid vendor id")
	ErrInvalidSerialNumber = errors.New("serial number must not be empty")
	ErrInvalidMountPoints  = errors.New("at least one mount point is required")
)

// CandidateDevice is a USB mass-storage device found on the host before its
// board identity is known. Values are immutable once constructed.
type CandidateDevice struct {
	productID    string
	vendorID     string
	serialNumber string
	mountPoints  []string
	serialPort   string
}

func NewCandidateDevice(productID, vendorID, serialNumber string, mountPoints []string, serialPort string) (CandidateDevice, error) {
	pid, err := FormatHexID(productID)
	if err != nil {
		return CandidateDevice{}, fmt.Errorf("%w: %q", ErrInvalidProductID, productID)
	}

	vid, err := FormatHexID(vendorID)
	if err != nil {
		return CandidateDevice{}, fmt.Errorf("%w: %q", ErrInvalidVendorID, vendorID)
	}

	if strings.TrimSpace(serialNumber) == "" {
		return CandidateDevice{}, ErrInvalidSerialNumber
	}

	if len(mountPoints) == 0 {
		return CandidateDevice{}, ErrInvalidMountPoints
	}

	return CandidateDevice{
		productID:    pid,
		vendorID:     vid,
		serialNumber: serialNumber,
		mountPoints:  append([]string(nil), mountPoints...),
		serialPort:   serialPort,
	}, nil
}

// FormatHexID normalises a USB id such as "0D28", "0x204" or "0X0204" to "0x0d28".
func FormatHexID(id string) (string, error) {
	s := strings.TrimSpace(id)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	if s == "" {
		return "", fmt.Errorf("empty hex id")
	}

	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return "", fmt.Errorf("parse hex id %q: %w", id, err)
	}

	return fmt.Sprintf("0x%04x", v), nil
}

func (c CandidateDevice) ProductID() string    { return c.productID }
func (c CandidateDevice) VendorID() string     { return c.vendorID }
func (c CandidateDevice) SerialNumber() string { return c.serialNumber }
func (c CandidateDevice) SerialPort() string   { return c.serialPort }

func (c CandidateDevice) HasSerialPort() bool {
	return c.serialPort != ""
}

func (c CandidateDevice) MountPoints() []string {
	return append([]string(nil), c.mountPoints...)
}

func (c CandidateDevice) GetIDString() string {
	return fmt.Sprintf("%s:%s", strings.TrimPrefix(c.vendorID, "0x"), strings.TrimPrefix(c.productID, "0x"))
}

func (c CandidateDevice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductID    string   `json:"product_id"`
		VendorID     string   `json:"vendor_id"`
		SerialNumber string   `json:"serial_number"`
		MountPoints  []string `json:"mount_points"`
		SerialPort   string   `json:"serial_port,omitempty"`
	}{c.productID, c.vendorID, c.serialNumber, c.mountPoints, c.serialPort})
}
