package usb

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"
	"howett.net/plist"

	"github.com/ARMmbed/mbedtools/internal/models"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return out, nil
}

var nonLeafNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bhub\b`),
	regexp.MustCompile(`(?i)^usb\s*\d*(\.\d+)?\s*bus$`),
	regexp.MustCompile(`(?i)root\s*hub`),
}

type darwinDetector struct {
	log       zerolog.Logger
	run       commandRunner
	listPorts func() ([]*enumerator.PortDetails, error)
}

type profilerDataType struct {
	DataType string            `plist:"_dataType"`
	Items    []profilerUSBItem `plist:"_items"`
}

type profilerUSBItem struct {
	Name       string            `plist:"_name"`
	VendorID   string            `plist:"vendor_id"`
	ProductID  string            `plist:"product_id"`
	SerialNum  string            `plist:"serial_num"`
	LocationID string            `plist:"location_id"`
	Media      []profilerMedia   `plist:"Media"`
	Items      []profilerUSBItem `plist:"_items"`
}

type profilerMedia struct {
	Name       string          `plist:"_name"`
	BSDName    string          `plist:"bsd_name"`
	MountPoint string          `plist:"mount_point"`
	Volumes    []profilerMedia `plist:"volumes"`
}

type diskutilInfo struct {
	MountPoint string `plist:"MountPoint"`
}

func (d *darwinDetector) FindCandidates(ctx context.Context) ([]models.CandidateDevice, error) {
	out, err := d.run(ctx, "system_profiler", "-xml", "SPUSBDataType")
	if err != nil {
		return nil, err
	}

	items, err := parseSystemProfiler(out)
	if err != nil {
		return nil, err
	}

	var candidates []models.CandidateDevice

	for _, item := range endLeafDevices(items) {
		log := d.log.With().Str("name", item.Name).Str("serial_number", item.SerialNum).Logger()

		mountPoints := d.mountPoints(ctx, item.Media)
		if len(mountPoints) == 0 {
			log.Debug().Msg("USB device has no mounted volume, skipping")
			continue
		}

		port := d.serialPort(ctx, item)

		candidate, err := models.NewCandidateDevice(firstField(item.ProductID), firstField(item.VendorID), item.SerialNum, mountPoints, port)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping device with invalid identity")
			continue
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func parseSystemProfiler(data []byte) ([]profilerUSBItem, error) {
	var types []profilerDataType
	if _, err := plist.Unmarshal(data, &types); err != nil {
		return nil, fmt.Errorf("failed to parse system_profiler output: %w", err)
	}

	var items []profilerUSBItem
	for _, t := range types {
		items = append(items, t.Items...)
	}

	return items, nil
}

// endLeafDevices flattens the USB tree to devices with no children, leaving
// out hubs and bus roots.
func endLeafDevices(items []profilerUSBItem) []profilerUSBItem {
	var leaves []profilerUSBItem

	for _, item := range items {
		if len(item.Items) > 0 {
			leaves = append(leaves, endLeafDevices(item.Items)...)
			continue
		}

		if isHubOrBus(item.Name) {
			continue
		}

		leaves = append(leaves, item)
	}

	return leaves
}

func isHubOrBus(name string) bool {
	for _, re := range nonLeafNamePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// mountPoints walks nested media and volume entries. Entries that report a BSD
// name but no mount point are looked up with diskutil.
func (d *darwinDetector) mountPoints(ctx context.Context, media []profilerMedia) []string {
	var mounts []string

	for _, m := range flattenMedia(media) {
		mount := m.MountPoint
		if mount == "" && m.BSDName != "" && len(m.Volumes) == 0 {
			mount = d.diskutilMountPoint(ctx, m.BSDName)
		}
		if mount != "" {
			mounts = append(mounts, mount)
		}
	}

	return mounts
}

func flattenMedia(media []profilerMedia) []profilerMedia {
	var flat []profilerMedia
	for _, m := range media {
		flat = append(flat, m)
		flat = append(flat, flattenMedia(m.Volumes)...)
	}
	return flat
}

func (d *darwinDetector) diskutilMountPoint(ctx context.Context, bsdName string) string {
	out, err := d.run(ctx, "diskutil", "info", "-plist", bsdName)
	if err != nil {
		d.log.Debug().Err(err).Str("bsd_name", bsdName).Msg("diskutil lookup failed")
		return ""
	}

	var info diskutilInfo
	if _, err := plist.Unmarshal(out, &info); err != nil {
		d.log.Debug().Err(err).Str("bsd_name", bsdName).Msg("Failed to parse diskutil output")
		return ""
	}

	return info.MountPoint
}

// serialPort asks the IO registry for the call-in device under the USB device
// node, falling back to the serial port enumerator.
func (d *darwinDetector) serialPort(ctx context.Context, item profilerUSBItem) string {
	out, err := d.run(ctx, "ioreg", "-a", "-r", "-n", item.Name, "-l")
	if err == nil {
		if port := findDialinDevice(out, item.SerialNum); port != "" {
			return port
		}
	} else {
		d.log.Debug().Err(err).Str("name", item.Name).Msg("ioreg lookup failed")
	}

	if d.listPorts == nil {
		return ""
	}

	ports, err := d.listPorts()
	if err != nil {
		d.log.Debug().Err(err).Msg("Failed to list serial ports")
		return ""
	}

	return serialPortFor(item.SerialNum, ports)
}

var ioregSerialKeys = []string{"USB Serial Number", "kUSBSerialNumberString"}

// findDialinDevice returns the IODialinDevice below the registry node whose
// USB serial number matches. When no node carries a serial number the first
// dial-in device wins.
func findDialinDevice(data []byte, serialNumber string) string {
	var nodes []map[string]interface{}
	if _, err := plist.Unmarshal(data, &nodes); err != nil {
		return ""
	}

	fallback := ""

	for _, node := range nodes {
		port := dialinDevice(node)
		if port == "" {
			continue
		}

		nodeSerial := ""
		for _, key := range ioregSerialKeys {
			if s, ok := node[key].(string); ok {
				nodeSerial = s
				break
			}
		}

		if nodeSerial != "" && strings.EqualFold(nodeSerial, serialNumber) {
			return port
		}

		if nodeSerial == "" && fallback == "" {
			fallback = port
		}
	}

	return fallback
}

func dialinDevice(node map[string]interface{}) string {
	if s, ok := node["IODialinDevice"].(string); ok && s != "" {
		return s
	}

	children, _ := node["IORegistryEntryChildren"].([]interface{})
	for _, c := range children {
		child, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if s := dialinDevice(child); s != "" {
			return s
		}
	}

	return ""
}

// firstField strips annotations such as "0x0d28  (ARM Ltd)".
func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
