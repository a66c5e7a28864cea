package mbus

// Primary VIF table (EN 13757-3 Table 10, representative subset). Rows are
// linearly scanned, masked to 7 bits: a row either matches a single fixed
// code or a 2^rangeBits group sharing a unit with a power-of-ten exponent
// in the low bits.
//
// This table intentionally does not attempt to reproduce every published
// row of Table 10 byte-for-byte; it covers the groups
// needed in practice: energy, volume, mass, power, the volume/mass flow
// families, the temperature and pressure families, date/date-time, and
// the pointer/plain-text/manufacturer-specific codes that every device
// touches.
var primaryVIFTable = []vifEntry{
	rangeEntry(0x00, 3, "Wh", -4),
	rangeEntry(0x08, 3, "J", 0),
	rangeEntry(0x10, 3, "m³", -6),
	rangeEntry(0x18, 3, "kg", -3),

	fixedEntry(0x20, "s"),  // on time, seconds
	fixedEntry(0x21, "min"), // on time, minutes
	fixedEntry(0x22, "h"),  // on time, hours
	fixedEntry(0x23, "d"),  // on time, days
	fixedEntry(0x24, "s"),  // operating time, seconds
	fixedEntry(0x25, "min"),
	fixedEntry(0x26, "h"),
	fixedEntry(0x27, "d"),

	rangeEntry(0x28, 3, "W", -3),
	rangeEntry(0x30, 3, "J/h", 0),

	rangeEntry(0x38, 3, "m³/h", -6),
	rangeEntry(0x40, 3, "m³/min", -7),
	rangeEntry(0x48, 3, "m³/s", -9),
	rangeEntry(0x50, 3, "kg/h", -3),

	rangeEntry(0x58, 2, "°C", -3),
	rangeEntry(0x5C, 2, "°C", -3), // return temperature
	rangeEntry(0x60, 2, "K", -3),  // temperature difference
	rangeEntry(0x64, 2, "°C", -3), // external temperature
	rangeEntry(0x68, 2, "bar", -3),

	dateEntry(0x6C, "date", dateCP16),
	dateEntry(0x6D, "date-time", dateCP32),

	fixedEntry(0x70, "s"), // averaging duration
	fixedEntry(0x71, "min"),
	fixedEntry(0x72, "h"),
	fixedEntry(0x73, "d"),

	fixedEntry(0x74, "s"), // actuality duration
	fixedEntry(0x75, "min"),
	fixedEntry(0x76, "h"),
	fixedEntry(0x77, "d"),

	fixedEntry(0x78, ""), // fabrication number
	fixedEntry(0x79, ""), // enhanced identification

	{code: 0x7C, mask: 0x7F, plainText: true},

	pointerEntry(0x7B, extFirst),
	pointerEntry(0x7D, extSecond),

	{code: 0x7E, mask: 0x7F, requestOnly: true}, // "any VIF" wildcard, request-only
	fixedEntry(0x7F, ""),                        // manufacturer-specific VIF
}

// First extension table (EN 13757-3 Table 14), reached via primary VIF
// 0x7B/0xFB. Representative subset covering the larger-unit energy/volume/
// mass families and a couple of fixed electrical-quantity codes.
var firstExtensionVIFTable = []vifEntry{
	rangeEntry(0x00, 3, "MWh", -1),
	rangeEntry(0x08, 3, "GJ", 0),
	rangeEntry(0x10, 3, "m³", 2), // extended volume, larger scale
	rangeEntry(0x18, 3, "t", -2),

	fixedEntry(0x20, "V"),
	fixedEntry(0x21, "A"),

	fixedEntry(0x28, ""), // reset counter
	fixedEntry(0x29, ""), // cumulation counter
}

// Second extension table (EN 13757-3 Table 12), reached via primary VIF
// 0x7D/0xFD. Representative subset covering error flags, duration since
// last readout, and a baud-rate code — the device-diagnostic corner of the
// table rather than the measurement corner.
var secondExtensionVIFTable = []vifEntry{
	fixedEntry(0x0B, "s"), // duration since last readout
	fixedEntry(0x17, ""),  // error flags (type D, bit array)
	fixedEntry(0x1D, ""),  // manufacturer-specific flags
	fixedEntry(0x74, "baud"),
}

// Combinable orthogonal/extension VIFE table (EN 13757-3 Tables 15/16).
// Each entry's unit, when non-empty, is appended as a modifier suffix to
// the base unit resolved from the primary/extension VIF.
// Representative subset: per-tariff annotation and phase labels, the two
// modifiers most commonly seen on real devices.
var combinableVIFETable = []vifEntry{
	fixedEntry(0x00, " (tariff 0)"),
	fixedEntry(0x01, " (tariff 1)"),
	fixedEntry(0x02, " (tariff 2)"),
	fixedEntry(0x03, " (tariff 3)"),

	fixedEntry(0x10, " L1"),
	fixedEntry(0x11, " L2"),
	fixedEntry(0x12, " L3"),

	fixedEntry(0x21, " (future value)"),
}
