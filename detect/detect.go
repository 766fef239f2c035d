// Package detect enumerates attached CH347 adapters over USB HID, without
// needing the vendor driver. Useful to answer "is anything plugged in" and
// to show serial numbers before opening a device.
package detect

import (
	"fmt"

	"github.com/karalabe/hid"

	"ch341compat/ch347"
)

// DeviceInfo describes one attached adapter.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Product   string
	Serial    string
	Path      string
}

func (d DeviceInfo) String() string {
	name := d.Product
	if name == "" {
		name = "CH347"
	}
	if d.Serial != "" {
		return fmt.Sprintf("%04x:%04x %s (serial %s)", d.VendorID, d.ProductID, name, d.Serial)
	}
	return fmt.Sprintf("%04x:%04x %s", d.VendorID, d.ProductID, name)
}

// Attached lists the CH347 adapters currently plugged in, in enumeration
// order. The order matches the device indices the driver assigns.
func Attached() []DeviceInfo {
	var out []DeviceInfo
	for _, pid := range []uint16{ch347.ProductIDT, ch347.ProductIDF} {
		for _, info := range hid.Enumerate(ch347.VendorID, pid) {
			out = append(out, DeviceInfo{
				VendorID:  info.VendorID,
				ProductID: info.ProductID,
				Product:   info.Product,
				Serial:    info.Serial,
				Path:      info.Path,
			})
		}
	}
	return out
}
