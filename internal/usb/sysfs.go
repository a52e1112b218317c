package usb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"go.bug.st/serial/enumerator"

	"github.com/ARMmbed/mbedtools/internal/models"
)

const defaultSysRoot = "/sys"

// usbDeviceInfo is what the USB bus reports about one device.
type usbDeviceInfo struct {
	Bus          int
	Address      int
	VendorID     string
	ProductID    string
	SerialNumber string
}

// blockDevice is a /sys/block entry that hangs off a USB device.
type blockDevice struct {
	Name       string
	Partitions []string
	USB        usbDeviceInfo
}

type linuxDetector struct {
	log            zerolog.Logger
	sysRoot        string
	listUSB        func(ctx context.Context) ([]usbDeviceInfo, error)
	listPartitions func(ctx context.Context) ([]disk.PartitionStat, error)
	listPorts      func() ([]*enumerator.PortDetails, error)
}

func (d *linuxDetector) FindCandidates(ctx context.Context) ([]models.CandidateDevice, error) {
	usbDevices, err := d.listUSB(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("USB enumeration incomplete, falling back to sysfs")
	}

	blocks, err := scanBlockDevices(d.sysRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to scan block devices: %w", err)
	}

	if len(blocks) == 0 {
		return nil, nil
	}

	partitions, err := d.listPartitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read mount table: %w", err)
	}

	ports, err := d.listPorts()
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to list serial ports, devices will have no serial port")
	}

	var candidates []models.CandidateDevice

	for _, group := range groupBlocksByUSBDevice(blocks, usbDevices) {
		info := group.info
		log := d.log.With().Int("bus", info.Bus).Int("address", info.Address).Str("serial_number", info.SerialNumber).Logger()

		mountPoints := mountPointsFor(group.blocks, partitions)
		if len(mountPoints) == 0 {
			log.Warn().Str("block_device", group.blocks[0].Name).Msg("Filesystem not mounted, skipping device")
			continue
		}

		port := serialPortFor(info.SerialNumber, ports)

		candidate, err := models.NewCandidateDevice(info.ProductID, info.VendorID, info.SerialNumber, mountPoints, port)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping device with invalid identity")
			continue
		}

		log.Debug().Strs("mount_points", mountPoints).Str("serial_port", port).Msg("Found candidate device")
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

type usbBlockGroup struct {
	info   usbDeviceInfo
	blocks []blockDevice
}

// groupBlocksByUSBDevice collects block devices per USB device. Identity read
// from the bus wins over sysfs; sysfs covers devices the bus layer could not open.
func groupBlocksByUSBDevice(blocks []blockDevice, usbDevices []usbDeviceInfo) []usbBlockGroup {
	fromBus := make(map[[2]int]usbDeviceInfo, len(usbDevices))
	for _, info := range usbDevices {
		fromBus[[2]int{info.Bus, info.Address}] = info
	}

	index := map[[2]int]int{}
	var groups []usbBlockGroup

	for _, b := range blocks {
		key := [2]int{b.USB.Bus, b.USB.Address}

		if i, ok := index[key]; ok {
			groups[i].blocks = append(groups[i].blocks, b)
			continue
		}

		info := b.USB
		if busInfo, ok := fromBus[key]; ok {
			info = mergeUSBInfo(busInfo, b.USB)
		}

		index[key] = len(groups)
		groups = append(groups, usbBlockGroup{info: info, blocks: []blockDevice{b}})
	}

	return groups
}

func mergeUSBInfo(primary, fallback usbDeviceInfo) usbDeviceInfo {
	if primary.VendorID == "" {
		primary.VendorID = fallback.VendorID
	}
	if primary.ProductID == "" {
		primary.ProductID = fallback.ProductID
	}
	if primary.SerialNumber == "" {
		primary.SerialNumber = fallback.SerialNumber
	}
	return primary
}

// scanBlockDevices lists /sys/block entries whose device path has a USB
// device (a directory with busnum and devnum) among its ancestors.
func scanBlockDevices(sysRoot string) ([]blockDevice, error) {
	root, err := filepath.EvalSymlinks(sysRoot)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(root, "block"))
	if err != nil {
		return nil, err
	}

	var blocks []blockDevice

	for _, e := range entries {
		devPath, err := filepath.EvalSymlinks(filepath.Join(root, "block", e.Name()))
		if err != nil {
			continue
		}

		usbDir, ok := findUSBAncestor(root, devPath)
		if !ok {
			continue
		}

		info, err := readSysfsUSBInfo(usbDir)
		if err != nil {
			continue
		}

		blocks = append(blocks, blockDevice{
			Name:       e.Name(),
			Partitions: listPartitions(devPath, e.Name()),
			USB:        info,
		})
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Name < blocks[j].Name })

	return blocks, nil
}

func findUSBAncestor(root, path string) (string, bool) {
	for dir := filepath.Dir(path); len(dir) > len(root) && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if fileExists(filepath.Join(dir, "busnum")) && fileExists(filepath.Join(dir, "devnum")) {
			return dir, true
		}
	}
	return "", false
}

func readSysfsUSBInfo(dir string) (usbDeviceInfo, error) {
	bus, err := readSysfsInt(filepath.Join(dir, "busnum"))
	if err != nil {
		return usbDeviceInfo{}, err
	}

	addr, err := readSysfsInt(filepath.Join(dir, "devnum"))
	if err != nil {
		return usbDeviceInfo{}, err
	}

	return usbDeviceInfo{
		Bus:          bus,
		Address:      addr,
		VendorID:     readSysfsString(filepath.Join(dir, "idVendor")),
		ProductID:    readSysfsString(filepath.Join(dir, "idProduct")),
		SerialNumber: readSysfsString(filepath.Join(dir, "serial")),
	}, nil
}

func listPartitions(devPath, name string) []string {
	entries, err := os.ReadDir(devPath)
	if err != nil {
		return nil
	}

	var parts []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), name) && fileExists(filepath.Join(devPath, e.Name(), "partition")) {
			parts = append(parts, e.Name())
		}
	}
	sort.Strings(parts)

	return parts
}

// mountPointsFor returns mount points of the whole disks and their partitions,
// in mount-table order without duplicates.
func mountPointsFor(blocks []blockDevice, partitions []disk.PartitionStat) []string {
	nodes := map[string]bool{}
	for _, b := range blocks {
		nodes["/dev/"+b.Name] = true
		for _, p := range b.Partitions {
			nodes["/dev/"+p] = true
		}
	}

	seen := map[string]bool{}
	var mounts []string

	for _, p := range partitions {
		if !nodes[p.Device] || p.Mountpoint == "" || seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true
		mounts = append(mounts, p.Mountpoint)
	}

	return mounts
}

// serialPortFor finds the USB serial port reporting the same serial number.
func serialPortFor(serialNumber string, ports []*enumerator.PortDetails) string {
	if serialNumber == "" {
		return ""
	}

	for _, p := range ports {
		if p != nil && p.IsUSB && strings.EqualFold(p.SerialNumber, serialNumber) {
			return p.Name
		}
	}

	return ""
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysfsInt(path string) (int, error) {
	return strconv.Atoi(readSysfsString(path))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
