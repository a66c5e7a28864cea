package mbus

// dateKind marks that a VIF's value must be reinterpreted from a plain
// integer of the matching width into one of the CP16/CP24/CP32/CP48
// date/time encodings, rather than a scaled number.
type dateKind int

const (
	dateNone dateKind = iota
	dateCP16 // type G: date, 2 bytes
	dateCP24 // type J: time, 3 bytes
	dateCP32 // type F: date-time, 4 bytes
	dateCP48 // type I: date-time, 6 bytes
)

// extTableID names which extension table a primary VIF code redirects into.
type extTableID int

const (
	extNone extTableID = iota
	extFirst
	extSecond
)

// vifEntry is one row of a (code, mask, descriptor) table, matched by
// `code == (vif & mask)` after the extension bit has been stripped. Entries
// with rangeBits > 0 cover 2^rangeBits consecutive codes that share a unit
// but vary a power-of-ten exponent in their low bits.
type vifEntry struct {
	code      byte
	mask      byte
	unit      string
	transform vifTransform
	date      dateKind
	extension extTableID
	plainText bool
	requestOnly bool
}

type vifTransformKind int

const (
	xformNone vifTransformKind = iota
	xformPow10
)

// vifTransform describes the numeric scaling applied to a decoded raw
// value. For xformPow10, the applied exponent is baseExponent plus the low
// rangeBits bits of the matched VIF code.
type vifTransform struct {
	kind         vifTransformKind
	baseExponent int
	rangeBits    byte
}

func rangeMask(rangeBits byte) byte {
	return 0x7F &^ ((1 << rangeBits) - 1)
}

// rangeEntry builds a table row covering 2^rangeBits consecutive codes
// starting at codeBase, scaled by 10^(baseExponent + low bits).
func rangeEntry(codeBase byte, rangeBits byte, unit string, baseExponent int) vifEntry {
	return vifEntry{
		code: codeBase,
		mask: rangeMask(rangeBits),
		unit: unit,
		transform: vifTransform{
			kind:         xformPow10,
			baseExponent: baseExponent,
			rangeBits:    rangeBits,
		},
	}
}

// fixedEntry builds a table row matching a single exact 7-bit code.
func fixedEntry(code byte, unit string) vifEntry {
	return vifEntry{code: code, mask: 0x7F, unit: unit}
}

func dateEntry(code byte, unit string, kind dateKind) vifEntry {
	return vifEntry{code: code, mask: 0x7F, unit: unit, date: kind}
}

func pointerEntry(code byte, table extTableID) vifEntry {
	return vifEntry{code: code, mask: 0x7F, extension: table}
}

// lookupVIFTable scans table linearly for an entry whose mask matches
// code's low 7 bits, returning the matched entry and the exponent
// selector bits (the part of code not covered by the entry's mask).
func lookupVIFTable(table []vifEntry, code byte) (vifEntry, byte, bool) {
	code &= 0x7F
	for _, e := range table {
		if code&e.mask == e.code {
			return e, code &^ e.mask, true
		}
	}
	return vifEntry{}, 0, false
}

// vifDescriptor is the resolved result of walking the VIF/VIFE chain: a
// unit string, a numeric transform, an optional forced date/time
// reinterpretation, and whether the value is plain text.
type vifDescriptor struct {
	unit      string
	transform vifTransform
	date      dateKind
	plainText bool
}

// apply scales raw by the descriptor's transform, returning the
// final scalar and the power-of-ten actually applied (0 if none).
func (v vifTransform) apply(raw float64) (float64, int) {
	if v.kind != xformPow10 {
		return raw, 0
	}
	exp := v.baseExponent
	return raw * pow10(exp), exp
}

func pow10(n int) float64 {
	if n == 0 {
		return 1
	}
	result := 1.0
	if n > 0 {
		for i := 0; i < n; i++ {
			result *= 10
		}
		return result
	}
	for i := 0; i > n; i-- {
		result /= 10
	}
	return result
}

// parseVIB parses the primary VIF and its VIFE continuation chain,
// resolving unit, numeric transform, and any forced date/time
// reinterpretation.
func parseVIB(cur *cursor) (vifDescriptor, error) {
	if cur.remaining() == 0 {
		return vifDescriptor{}, protoErr(PayloadTruncated, "expected VIF byte")
	}
	first := cur.take(1)[0]

	entry, lowBits, ok := lookupVIFTable(primaryVIFTable, first)
	if !ok {
		return vifDescriptor{}, &ProtocolError{Code: UnknownVIF, Byte: first, Path: "primary"}
	}
	if entry.requestOnly {
		return vifDescriptor{}, &ProtocolError{Code: UnknownVIF, Byte: first, Path: "primary", Detail: "request-only VIF in response"}
	}

	desc := vifDescriptor{unit: entry.unit, date: entry.date, plainText: entry.plainText}
	desc.transform = entry.transform
	if desc.transform.kind == xformPow10 {
		desc.transform.baseExponent += int(lowBits)
		desc.transform.rangeBits = 0 // exponent already folded in
	}

	path := "primary"
	if entry.extension != extNone {
		if cur.remaining() == 0 {
			return vifDescriptor{}, protoErr(PayloadTruncated, "expected extension VIF byte")
		}
		sub := cur.take(1)[0]
		var table []vifEntry
		if entry.extension == extFirst {
			table = firstExtensionVIFTable
			path = "primary->first-extension"
		} else {
			table = secondExtensionVIFTable
			path = "primary->second-extension"
		}
		subEntry, subLow, ok := lookupVIFTable(table, sub)
		if !ok {
			return vifDescriptor{}, &ProtocolError{Code: UnknownVIF, Byte: sub, Path: path}
		}
		desc.unit = subEntry.unit
		desc.date = subEntry.date
		desc.plainText = subEntry.plainText
		desc.transform = subEntry.transform
		if desc.transform.kind == xformPow10 {
			desc.transform.baseExponent += int(subLow)
			desc.transform.rangeBits = 0
		}
		extend := sub&0x80 != 0
		return consumeCombinableVIFEs(cur, desc, extend, path)
	}

	extend := first&0x80 != 0
	return consumeCombinableVIFEs(cur, desc, extend, path)
}

// consumeCombinableVIFEs walks any remaining VIFE bytes, each looked up in
// the combinable orthogonal/extension tables and attached as a unit
// modifier.
func consumeCombinableVIFEs(cur *cursor, desc vifDescriptor, extend bool, path string) (vifDescriptor, error) {
	for k := 0; extend; k++ {
		if k >= maxVIFEChain {
			return vifDescriptor{}, protoErr(VIFEChainTooLong, "exceeded 10 VIFE bytes")
		}
		if cur.remaining() == 0 {
			return vifDescriptor{}, protoErr(PayloadTruncated, "expected VIFE byte")
		}
		vife := cur.take(1)[0]
		entry, _, ok := lookupVIFTable(combinableVIFETable, vife)
		if !ok {
			return vifDescriptor{}, &ProtocolError{Code: UnknownVIF, Byte: vife, Path: path + "->combinable"}
		}
		if entry.unit != "" {
			desc.unit += entry.unit
		}
		extend = vife&0x80 != 0
	}
	return desc, nil
}
