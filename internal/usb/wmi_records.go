package usb

import "github.com/ARMmbed/mbedtools/internal/descriptor"

// WMI records. Columns are pointers because WMI leaves them NULL whenever a
// driver does not report the value.

type usbHubRecord struct {
	DeviceID    *string
	PNPDeviceID *string
	Name        *string
	Description *string
}

func (r usbHubRecord) Fields() []descriptor.Field {
	return []descriptor.Field{
		{Name: "DeviceID", Value: r.DeviceID},
		{Name: "PNPDeviceID", Value: r.PNPDeviceID},
		{Name: "Name", Value: r.Name},
		{Name: "Description", Value: r.Description},
	}
}

type usbControllerRecord struct {
	DeviceID    *string
	PNPDeviceID *string
	Name        *string
}

func (r usbControllerRecord) Fields() []descriptor.Field {
	return []descriptor.Field{
		{Name: "DeviceID", Value: r.DeviceID},
		{Name: "PNPDeviceID", Value: r.PNPDeviceID},
		{Name: "Name", Value: r.Name},
	}
}

type diskDriveRecord struct {
	DeviceID      *string
	PNPDeviceID   *string
	SerialNumber  *string
	Model         *string
	InterfaceType *string
	Index         *uint32
}

func (r diskDriveRecord) Fields() []descriptor.Field {
	return []descriptor.Field{
		{Name: "DeviceID", Value: r.DeviceID},
		{Name: "PNPDeviceID", Value: r.PNPDeviceID},
		{Name: "SerialNumber", Value: r.SerialNumber},
		{Name: "Model", Value: r.Model},
		{Name: "InterfaceType", Value: r.InterfaceType},
		{Name: "Index", Value: r.Index},
	}
}

type diskPartitionRecord struct {
	DeviceID  *string
	DiskIndex *uint32
}

func (r diskPartitionRecord) Fields() []descriptor.Field {
	return []descriptor.Field{
		{Name: "DeviceID", Value: r.DeviceID},
		{Name: "DiskIndex", Value: r.DiskIndex},
	}
}

// logicalDiskToPartitionRecord links a partition (Antecedent) to the logical
// disk, i.e. drive letter, it backs (Dependent). Both are WMI object paths.
type logicalDiskToPartitionRecord struct {
	Antecedent *string
	Dependent  *string
}

func (r logicalDiskToPartitionRecord) Fields() []descriptor.Field {
	return []descriptor.Field{
		{Name: "Antecedent", Value: r.Antecedent},
		{Name: "Dependent", Value: r.Dependent},
	}
}

type serialPortRecord struct {
	DeviceID    *string
	PNPDeviceID *string
	Name        *string
}

func (r serialPortRecord) Fields() []descriptor.Field {
	return []descriptor.Field{
		{Name: "DeviceID", Value: r.DeviceID},
		{Name: "PNPDeviceID", Value: r.PNPDeviceID},
		{Name: "Name", Value: r.Name},
	}
}

// dropUndefined removes records in which WMI reported nothing at all.
func dropUndefined[T descriptor.Descriptor](records []T) []T {
	kept := records[:0]
	for _, r := range records {
		if !descriptor.IsUndefinedDataObject(r) {
			kept = append(kept, r)
		}
	}
	return kept
}
