//go:build linux

package usb

import (
	"context"
	"fmt"

	"github.com/google/gousb"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"go.bug.st/serial/enumerator"
)

func newPlatformDetector(log zerolog.Logger) (Detector, error) {
	return &linuxDetector{
		log:     log,
		sysRoot: defaultSysRoot,
		listUSB: func(ctx context.Context) ([]usbDeviceInfo, error) {
			return listMassStorageDevices(ctx, log)
		},
		listPartitions: func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, true)
		},
		listPorts: enumerator.GetDetailedPortsList,
	}, nil
}

// listMassStorageDevices opens every USB device exposing a mass-storage
// interface and reads its identity. Devices the user may not open are left to
// the sysfs fallback.
func listMassStorageDevices(_ context.Context, log zerolog.Logger) ([]usbDeviceInfo, error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	devices, err := usbCtx.OpenDevices(hasMassStorageInterface)
	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
	}()
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to open USB devices: %w", err)
	}
	if err != nil {
		log.Debug().Err(err).Msg("Some USB devices could not be opened")
	}

	infos := make([]usbDeviceInfo, 0, len(devices))
	for _, dev := range devices {
		desc := dev.Desc
		info := usbDeviceInfo{
			Bus:       desc.Bus,
			Address:   desc.Address,
			VendorID:  desc.Vendor.String(),
			ProductID: desc.Product.String(),
		}

		if serial, err := dev.SerialNumber(); err == nil {
			info.SerialNumber = serial
		}

		infos = append(infos, info)
	}

	return infos, nil
}

func hasMassStorageInterface(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassMassStorage {
					return true
				}
			}
		}
	}
	return false
}
