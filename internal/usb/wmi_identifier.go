package usb

import (
	"strings"

	"github.com/ARMmbed/mbedtools/internal/descriptor"
)

// UsbIdentifier is parsed from a PNP device id such as
//
//	USB\VID_0D28&PID_0204\0240000034544E45001E00048E3800525881000097969900
//	USB\VID_0D28&PID_0204&MI_01\7&2F125EC6&0&0001
//	USBSTOR\DISK&VEN_MBED&PROD_VFS&REV_0.1\0240000034544E45001E00048E3800525881000097969900&0
//
// RawUID is the instance part. UID is the serial number of the physical
// device once the instance has been resolved against its parent.
type UsbIdentifier struct {
	UID       string
	RawUID    string
	VendorID  string
	ProductID string
	Interface bool
	RootHub   bool
}

func parsePNPDeviceID(pnpID string) (UsbIdentifier, bool) {
	parts := strings.SplitN(pnpID, `\`, 3)
	if len(parts) != 3 || parts[2] == "" {
		return UsbIdentifier{}, false
	}

	id := UsbIdentifier{RawUID: parts[2], UID: parts[2]}

	hardware := strings.ToUpper(parts[1])
	if strings.HasPrefix(hardware, "ROOT_HUB") {
		id.RootHub = true
	}

	for _, token := range strings.Split(hardware, "&") {
		switch {
		case strings.HasPrefix(token, "VID_"):
			id.VendorID = strings.TrimPrefix(token, "VID_")
		case strings.HasPrefix(token, "PID_"):
			id.ProductID = strings.TrimPrefix(token, "PID_")
		case strings.HasPrefix(token, "MI_"):
			id.Interface = true
		}
	}

	return id, true
}

// uidResolver maps instance ids back to the serial number of the composite
// parent device. Windows names the children of a composite device
// "<ParentIdPrefix>&<interface>", and USB storage disks "<serial>&<lun>".
type uidResolver struct {
	serials  map[string]string
	prefixes map[string]string
}

func newUIDResolver(hubs []usbHubRecord, parentPrefixes map[string]string) *uidResolver {
	r := &uidResolver{serials: map[string]string{}, prefixes: map[string]string{}}

	for _, hub := range hubs {
		pnp := descriptor.String(hub.PNPDeviceID)

		id, ok := parsePNPDeviceID(pnp)
		if !ok || id.Interface || id.RootHub || strings.Contains(id.RawUID, "&") {
			continue
		}

		r.serials[strings.ToUpper(id.RawUID)] = id.RawUID

		if prefix, ok := parentPrefixes[pnp]; ok && prefix != "" {
			r.prefixes[strings.ToUpper(prefix)] = id.RawUID
		}
	}

	return r
}

// resolve trims trailing "&xxxx" components until it reaches a known serial
// number or parent prefix. Unknown instances resolve to themselves.
func (r *uidResolver) resolve(raw string) string {
	candidate := strings.ToUpper(raw)

	for {
		if serial, ok := r.serials[candidate]; ok {
			return serial
		}
		if serial, ok := r.prefixes[candidate]; ok {
			return serial
		}

		i := strings.LastIndex(candidate, "&")
		if i < 0 {
			return raw
		}
		candidate = candidate[:i]
	}
}

func (r *uidResolver) identify(pnpID string) (UsbIdentifier, bool) {
	id, ok := parsePNPDeviceID(pnpID)
	if !ok {
		return UsbIdentifier{}, false
	}

	id.UID = r.resolve(id.RawUID)

	return id, true
}
