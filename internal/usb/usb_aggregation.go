package usb

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ARMmbed/mbedtools/internal/descriptor"
	"github.com/ARMmbed/mbedtools/internal/models"
)

// windowsSystemData is one snapshot of every WMI class the Windows detector
// needs, loaded together before any correlation happens.
type windowsSystemData struct {
	hubs        []usbHubRecord
	controllers []usbControllerRecord
	disks       []diskDriveRecord
	partitions  []diskPartitionRecord
	links       []logicalDiskToPartitionRecord
	serialPorts []serialPortRecord

	// parentPrefixes maps a hub PNPDeviceID to its ParentIdPrefix registry value.
	parentPrefixes map[string]string
}

// AggregatedUsbData gathers every record sharing one USB identifier.
type AggregatedUsbData struct {
	Identifier        UsbIdentifier
	Disks             []diskDriveRecord
	SerialPorts       []serialPortRecord
	RelatedInterfaces []usbHubRecord
}

func (a AggregatedUsbData) IsComposite() bool {
	return len(a.RelatedInterfaces) > 1
}

func (a AggregatedUsbData) IsAssociatedWithDisk() bool {
	return len(a.Disks) > 0
}

var wmiDeviceIDPattern = regexp.MustCompile(`DeviceID="([^"]+)"`)

type usbDataAggregator struct {
	data     *windowsSystemData
	resolver *uidResolver
}

func newUSBDataAggregator(data *windowsSystemData) *usbDataAggregator {
	return &usbDataAggregator{
		data:     data,
		resolver: newUIDResolver(data.hubs, data.parentPrefixes),
	}
}

// usbIdentifiers lists distinct physical devices seen among the USB hub
// records, leaving out host controllers and root hubs.
func (a *usbDataAggregator) usbIdentifiers() []UsbIdentifier {
	controllers := map[string]bool{}
	for _, c := range a.data.controllers {
		if id, ok := parsePNPDeviceID(descriptor.String(c.PNPDeviceID)); ok {
			controllers[strings.ToUpper(id.RawUID)] = true
		}
	}

	seen := map[string]bool{}
	var ids []UsbIdentifier

	for _, hub := range a.data.hubs {
		id, ok := a.resolver.identify(descriptor.String(hub.PNPDeviceID))
		if !ok || id.Interface || id.RootHub {
			continue
		}

		key := strings.ToUpper(id.UID)
		if controllers[key] || controllers[strings.ToUpper(id.RawUID)] || seen[key] {
			continue
		}

		seen[key] = true
		ids = append(ids, id)
	}

	return ids
}

func (a *usbDataAggregator) aggregate(id UsbIdentifier) AggregatedUsbData {
	agg := AggregatedUsbData{Identifier: id}

	for _, hub := range a.data.hubs {
		if a.sameDevice(id, hub.PNPDeviceID) {
			agg.RelatedInterfaces = append(agg.RelatedInterfaces, hub)
		}
	}

	for _, d := range a.data.disks {
		if a.sameDevice(id, d.PNPDeviceID) || strings.EqualFold(strings.TrimSpace(descriptor.String(d.SerialNumber)), id.UID) {
			agg.Disks = append(agg.Disks, d)
		}
	}

	for _, p := range a.data.serialPorts {
		if a.sameDevice(id, p.PNPDeviceID) {
			agg.SerialPorts = append(agg.SerialPorts, p)
		}
	}

	return agg
}

func (a *usbDataAggregator) sameDevice(id UsbIdentifier, pnpID *string) bool {
	other, ok := a.resolver.identify(descriptor.String(pnpID))
	return ok && strings.EqualFold(other.UID, id.UID)
}

// mountPoints follows disk index -> partitions -> logical disks.
func (a *usbDataAggregator) mountPoints(disk diskDriveRecord) []string {
	if disk.Index == nil {
		return nil
	}

	partitionIDs := map[string]bool{}
	for _, p := range a.data.partitions {
		if p.DiskIndex != nil && *p.DiskIndex == *disk.Index {
			partitionIDs[descriptor.String(p.DeviceID)] = true
		}
	}

	var mounts []string
	for _, link := range a.data.links {
		partition := wmiObjectDeviceID(descriptor.String(link.Antecedent))
		if !partitionIDs[partition] {
			continue
		}
		if drive := wmiObjectDeviceID(descriptor.String(link.Dependent)); drive != "" {
			mounts = append(mounts, drive)
		}
	}

	sort.Strings(mounts)

	return mounts
}

func wmiObjectDeviceID(path string) string {
	m := wmiDeviceIDPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// candidatesFromSystemData keeps composite devices with at least one disk and
// turns each into a CandidateDevice.
func candidatesFromSystemData(data *windowsSystemData, log zerolog.Logger) []models.CandidateDevice {
	a := newUSBDataAggregator(data)

	var candidates []models.CandidateDevice

	for _, id := range a.usbIdentifiers() {
		agg := a.aggregate(id)
		devLog := log.With().Str("uid", id.UID).Str("vendor_id", id.VendorID).Str("product_id", id.ProductID).Logger()

		if !agg.IsComposite() || !agg.IsAssociatedWithDisk() {
			devLog.Trace().
				Bool("composite", agg.IsComposite()).
				Bool("has_disk", agg.IsAssociatedWithDisk()).
				Msg("Not a mass-storage development board")
			continue
		}

		var mounts []string
		for _, d := range agg.Disks {
			mounts = append(mounts, a.mountPoints(d)...)
		}

		if len(mounts) == 0 {
			devLog.Warn().Msg("Disk has no drive letter, skipping device")
			continue
		}

		port := ""
		if len(agg.SerialPorts) > 0 {
			port = descriptor.String(agg.SerialPorts[0].DeviceID)
		}

		candidate, err := models.NewCandidateDevice(id.ProductID, id.VendorID, id.UID, mounts, port)
		if err != nil {
			devLog.Warn().Err(err).Interface("disk", descriptor.AsMap(agg.Disks[0])).Msg("Skipping device with invalid identity")
			continue
		}

		candidates = append(candidates, candidate)
	}

	return candidates
}
