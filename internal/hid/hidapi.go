package hid

import (
	"fmt"

	karalabehid "github.com/karalabe/hid"
)

const (
	// UsagePageGenericDesktop is the HID usage page of keyboards.
	UsagePageGenericDesktop uint16 = 0x01

	// UsageKeyboard is the HID usage of keyboards on the generic desktop page.
	UsageKeyboard uint16 = 0x06

	// AnyInterface disables interface filtering in EnumerateKeyboards.
	AnyInterface = -1
)

// HIDAPIDevice wraps a karalabe/hid device to implement the Device interface.
type HIDAPIDevice struct {
	device karalabehid.Device // karalabe/hid.Device is an interface
	info   DeviceInfo
}

// Verify HIDAPIDevice implements Device interface.
var _ Device = (*HIDAPIDevice)(nil)

// NewHIDAPIDevice creates a new HIDAPIDevice from an open hid.Device.
func NewHIDAPIDevice(device karalabehid.Device, info DeviceInfo) *HIDAPIDevice {
	return &HIDAPIDevice{
		device: device,
		info:   info,
	}
}

// Read reads an input report from the device.
func (d *HIDAPIDevice) Read(data []byte) (int, error) {
	return d.device.Read(data)
}

// Close closes the device handle.
func (d *HIDAPIDevice) Close() error {
	return d.device.Close()
}

// Info returns information about the device.
func (d *HIDAPIDevice) Info() DeviceInfo {
	return d.info
}

// EnumerateKeyboards lists HID devices usable as calibration keyboards.
// A zero vendorID enumerates every device and keeps only those that report
// the keyboard usage; with an explicit vendorID all matching interfaces are
// kept. iface filters by USB interface unless it is AnyInterface.
func EnumerateKeyboards(vendorID, productID uint16, iface int) ([]DeviceInfo, error) {
	devices, err := karalabehid.Enumerate(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}

	var keyboards []DeviceInfo
	for _, device := range devices {
		if iface != AnyInterface && device.Interface != iface {
			continue
		}
		if vendorID == 0 && (device.UsagePage != UsagePageGenericDesktop || device.Usage != UsageKeyboard) {
			continue
		}
		keyboards = append(keyboards, DeviceInfo{
			Path:         device.Path,
			VendorID:     device.VendorID,
			ProductID:    device.ProductID,
			Serial:       device.Serial,
			Manufacturer: device.Manufacturer,
			Product:      device.Product,
			UsagePage:    device.UsagePage,
			Usage:        device.Usage,
			Interface:    device.Interface,
		})
	}

	return keyboards, nil
}

// OpenDevice opens the device described by info.
func OpenDevice(info DeviceInfo) (Device, error) {
	device, err := karalabehid.DeviceInfo{
		Path:      info.Path,
		VendorID:  info.VendorID,
		ProductID: info.ProductID,
		Serial:    info.Serial,
		UsagePage: info.UsagePage,
		Usage:     info.Usage,
		Interface: info.Interface,
	}.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open HID device %s: %w", info.Path, err)
	}

	return NewHIDAPIDevice(device, info), nil
}
