// Package names resolves Bluetooth-assigned UUIDs to their registered
// display names. It knows GATT services, characteristics and descriptors
// as well as the classic SDP service classes that still show up in
// advertisements and scan responses.
package names

import (
	"sort"
	"sync"

	"tinygo.org/x/bluetooth"
)

// Lookup resolves a UUID to its assigned name. Only UUIDs on the
// Bluetooth base (0000xxxx-0000-1000-8000-00805f9b34fb) can resolve;
// vendor UUIDs always miss.
func Lookup(u bluetooth.UUID) (string, bool) {
	if !u.Is16Bit() {
		return "", false
	}
	name, ok := assigned[uint16(u[3])]
	return name, ok
}

// Describe returns the assigned name, or "Unknown" for vendor and
// unregistered UUIDs.
func Describe(u bluetooth.UUID) string {
	if name, ok := Lookup(u); ok {
		return name
	}
	return "Unknown"
}

// IsVendor reports whether the UUID is outside the Bluetooth base
// range, i.e. a custom UUID minted by the device vendor.
func IsVendor(u bluetooth.UUID) bool {
	return !u.Is32Bit()
}

// Payload is the slice of the advertisement API needed to probe for
// service UUIDs. bluetooth.ScanResult satisfies it.
type Payload interface {
	HasServiceUUID(uuid bluetooth.UUID) bool
}

// AdvertisedServices returns the registered services present in an
// advertisement. The payload only answers membership questions, so
// discovery is a probe across the known service table.
func AdvertisedServices(p Payload) []bluetooth.UUID {
	var hits []bluetooth.UUID
	for _, u := range serviceIDs() {
		if p.HasServiceUUID(u) {
			hits = append(hits, u)
		}
	}
	return hits
}

var (
	probeOnce sync.Once
	probeList []bluetooth.UUID
)

func serviceIDs() []bluetooth.UUID {
	probeOnce.Do(func() {
		var shorts []int
		for id := range assigned {
			if isServiceID(id) {
				shorts = append(shorts, int(id))
			}
		}
		sort.Ints(shorts)
		for _, id := range shorts {
			probeList = append(probeList, bluetooth.New16BitUUID(uint16(id)))
		}
	})
	return probeList
}

// isServiceID reports whether a short identifier names a service rather
// than a characteristic, descriptor or declaration.
func isServiceID(id uint16) bool {
	switch {
	case id >= 0x1000 && id < 0x1400: // classic SDP service classes
		return true
	case id >= 0x1800 && id < 0x1900: // GATT services
		return true
	case id >= 0xFD00: // SIG member services
		return true
	}
	return false
}

// Registered 16-bit identifiers, keyed by short form.
var assigned = map[uint16]string{
	// Classic SDP service classes
	0x1101: "Serial Port",
	0x1102: "LAN Access",
	0x1103: "Dialup Networking",
	0x1104: "IrMC Sync",
	0x1105: "OBEX Object Push",
	0x1106: "OBEX File Transfer",
	0x1108: "Headset",
	0x110A: "Audio Source",
	0x110B: "Audio Sink",
	0x110C: "A/V Remote Control Target",
	0x110D: "Advanced Audio Distribution",
	0x110E: "A/V Remote Control",
	0x1112: "Headset Audio Gateway",
	0x1115: "PANU",
	0x1116: "NAP",
	0x1117: "GN",
	0x111E: "Handsfree",
	0x111F: "Handsfree Audio Gateway",
	0x1124: "Human Interface Device",
	0x112D: "SIM Access",
	0x112F: "Phonebook Access",
	0x1132: "Message Access",
	0x1134: "Message Access Profile",
	0x1200: "PnP Information",
	0x1203: "Generic Audio",

	// GATT services
	0x1800: "Generic Access",
	0x1801: "Generic Attribute",
	0x1802: "Immediate Alert",
	0x1803: "Link Loss",
	0x1804: "Tx Power",
	0x1805: "Current Time Service",
	0x1806: "Reference Time Update Service",
	0x1807: "Next DST Change Service",
	0x1808: "Glucose",
	0x1809: "Health Thermometer",
	0x180A: "Device Information",
	0x180D: "Heart Rate",
	0x180E: "Phone Alert Status Service",
	0x180F: "Battery Service",
	0x1810: "Blood Pressure",
	0x1811: "Alert Notification Service",
	0x1812: "Human Interface Device",
	0x1813: "Scan Parameters",
	0x1814: "Running Speed and Cadence",
	0x1815: "Automation IO",
	0x1816: "Cycling Speed and Cadence",
	0x1818: "Cycling Power",
	0x1819: "Location and Navigation",
	0x181A: "Environmental Sensing",
	0x181B: "Body Composition",
	0x181C: "User Data",
	0x181D: "Weight Scale",
	0x1826: "Fitness Machine",
	0x1827: "Mesh Provisioning",
	0x1828: "Mesh Proxy",

	// Member services seen constantly in the wild
	0xFD6F: "Exposure Notification",
	0xFE2C: "Google Fast Pair",
	0xFEAA: "Eddystone",

	// GATT declarations
	0x2800: "Primary Service",
	0x2801: "Secondary Service",
	0x2802: "Include",
	0x2803: "Characteristic",

	// GATT descriptors
	0x2900: "Characteristic Extended Properties",
	0x2901: "Characteristic User Description",
	0x2902: "Client Characteristic Configuration",
	0x2903: "Server Characteristic Configuration",
	0x2904: "Characteristic Presentation Format",
	0x2905: "Characteristic Aggregate Format",
	0x2906: "Valid Range",
	0x2907: "External Report Reference",
	0x2908: "Report Reference",

	// GATT characteristics
	0x2A00: "Device Name",
	0x2A01: "Appearance",
	0x2A02: "Peripheral Privacy Flag",
	0x2A03: "Reconnection Address",
	0x2A04: "Peripheral Preferred Connection Parameters",
	0x2A05: "Service Changed",
	0x2A06: "Alert Level",
	0x2A07: "Tx Power Level",
	0x2A08: "Date Time",
	0x2A09: "Day of Week",
	0x2A0A: "Day Date Time",
	0x2A0C: "Exact Time 256",
	0x2A0D: "DST Offset",
	0x2A0E: "Time Zone",
	0x2A0F: "Local Time Information",
	0x2A11: "Time with DST",
	0x2A12: "Time Accuracy",
	0x2A13: "Time Source",
	0x2A14: "Reference Time Information",
	0x2A16: "Time Update Control Point",
	0x2A17: "Time Update State",
	0x2A18: "Glucose Measurement",
	0x2A19: "Battery Level",
	0x2A1C: "Temperature Measurement",
	0x2A1D: "Temperature Type",
	0x2A1E: "Intermediate Temperature",
	0x2A21: "Measurement Interval",
	0x2A22: "Boot Keyboard Input Report",
	0x2A23: "System ID",
	0x2A24: "Model Number String",
	0x2A25: "Serial Number String",
	0x2A26: "Firmware Revision String",
	0x2A27: "Hardware Revision String",
	0x2A28: "Software Revision String",
	0x2A29: "Manufacturer Name String",
	0x2A2A: "IEEE 11073-20601 Regulatory Certification Data List",
	0x2A2B: "Current Time",
	0x2A31: "Scan Refresh",
	0x2A32: "Boot Keyboard Output Report",
	0x2A33: "Boot Mouse Input Report",
	0x2A34: "Glucose Measurement Context",
	0x2A35: "Blood Pressure Measurement",
	0x2A36: "Intermediate Cuff Pressure",
	0x2A37: "Heart Rate Measurement",
	0x2A38: "Body Sensor Location",
	0x2A39: "Heart Rate Control Point",
	0x2A3F: "Alert Status",
	0x2A40: "Ringer Control Point",
	0x2A41: "Ringer Setting",
	0x2A42: "Alert Category ID Bit Mask",
	0x2A43: "Alert Category ID",
	0x2A44: "Alert Notification Control Point",
	0x2A45: "Unread Alert Status",
	0x2A46: "New Alert",
	0x2A47: "Supported New Alert Category",
	0x2A48: "Supported Unread Alert Category",
	0x2A49: "Blood Pressure Feature",
	0x2A4A: "HID Information",
	0x2A4B: "Report Map",
	0x2A4C: "HID Control Point",
	0x2A4D: "Report",
	0x2A4E: "Protocol Mode",
	0x2A4F: "Scan Interval Window",
	0x2A50: "PnP ID",
	0x2A51: "Glucose Feature",
	0x2A52: "Record Access Control Point",
	0x2A53: "RSC Measurement",
	0x2A54: "RSC Feature",
	0x2A55: "SC Control Point",
	0x2A56: "Digital",
	0x2A58: "Analog",
	0x2A5A: "Aggregate",
	0x2A5B: "CSC Measurement",
	0x2A5C: "CSC Feature",
	0x2A5D: "Sensor Location",
	0x2A63: "Cycling Power Measurement",
	0x2A65: "Cycling Power Feature",
	0x2A6D: "Pressure",
	0x2A6E: "Temperature",
	0x2A6F: "Humidity",
	0x2AA6: "Central Address Resolution",
}
