//go:build windows

package usb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/windows/registry"

	"github.com/ARMmbed/mbedtools/internal/descriptor"
	"github.com/ARMmbed/mbedtools/internal/models"
)

const wmiQueryConcurrency = 3

type windowsDetector struct {
	log zerolog.Logger
}

func newPlatformDetector(log zerolog.Logger) (Detector, error) {
	return &windowsDetector{log: log}, nil
}

func (d *windowsDetector) FindCandidates(ctx context.Context) ([]models.CandidateDevice, error) {
	data, err := loadWindowsSystemData(ctx, d.log)
	if err != nil {
		return nil, err
	}

	return candidatesFromSystemData(data, d.log), nil
}

// loadWindowsSystemData runs the WMI queries side by side and waits for all
// of them; the detector never works from a partial snapshot.
func loadWindowsSystemData(ctx context.Context, log zerolog.Logger) (*windowsSystemData, error) {
	data := &windowsSystemData{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(wmiQueryConcurrency)

	g.Go(func() error {
		return wmiQuery(ctx, "SELECT DeviceID, PNPDeviceID, Name, Description FROM Win32_USBHub", &data.hubs)
	})
	g.Go(func() error {
		return wmiQuery(ctx, "SELECT DeviceID, PNPDeviceID, Name FROM Win32_USBController", &data.controllers)
	})
	g.Go(func() error {
		return wmiQuery(ctx, "SELECT DeviceID, PNPDeviceID, SerialNumber, Model, InterfaceType, Index FROM Win32_DiskDrive", &data.disks)
	})
	g.Go(func() error {
		return wmiQuery(ctx, "SELECT DeviceID, DiskIndex FROM Win32_DiskPartition", &data.partitions)
	})
	g.Go(func() error {
		return wmiQuery(ctx, "SELECT Antecedent, Dependent FROM Win32_LogicalDiskToPartition", &data.links)
	})
	g.Go(func() error {
		return wmiQuery(ctx, "SELECT DeviceID, PNPDeviceID, Name FROM Win32_SerialPort", &data.serialPorts)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.hubs = dropUndefined(data.hubs)
	data.controllers = dropUndefined(data.controllers)
	data.disks = dropUndefined(data.disks)
	data.partitions = dropUndefined(data.partitions)
	data.links = dropUndefined(data.links)
	data.serialPorts = dropUndefined(data.serialPorts)
	data.parentPrefixes = readParentIDPrefixes(data.hubs, log)

	log.Debug().
		Int("hubs", len(data.hubs)).
		Int("controllers", len(data.controllers)).
		Int("disks", len(data.disks)).
		Int("partitions", len(data.partitions)).
		Int("serial_ports", len(data.serialPorts)).
		Msg("Loaded WMI data")

	return data, nil
}

func wmiQuery(ctx context.Context, query string, dst interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := wmi.Query(query, dst); err != nil {
		return fmt.Errorf("WMI query %q failed: %w", query, err)
	}

	return nil
}

// readParentIDPrefixes looks up the prefix Windows gives to the interfaces of
// each composite device.
func readParentIDPrefixes(hubs []usbHubRecord, log zerolog.Logger) map[string]string {
	prefixes := map[string]string{}

	for _, hub := range hubs {
		pnp := descriptor.String(hub.PNPDeviceID)

		id, ok := parsePNPDeviceID(pnp)
		if !ok || id.Interface || id.RootHub {
			continue
		}

		key, err := registry.OpenKey(registry.LOCAL_MACHINE, `SYSTEM\CurrentControlSet\Enum\`+pnp, registry.QUERY_VALUE)
		if err != nil {
			log.Trace().Err(err).Str("pnp_device_id", pnp).Msg("No registry entry for USB device")
			continue
		}

		prefix, _, err := key.GetStringValue("ParentIdPrefix")
		key.Close()
		if err != nil {
			continue
		}

		prefixes[pnp] = prefix
	}

	return prefixes
}
