package mbus

// Function is the DIF-encoded function code.
type Function int

const (
	FunctionInstantaneous Function = iota
	FunctionMaximum
	FunctionMinimum
	FunctionError
)

func (f Function) String() string {
	switch f {
	case FunctionInstantaneous:
		return "instantaneous"
	case FunctionMaximum:
		return "maximum"
	case FunctionMinimum:
		return "minimum"
	case FunctionError:
		return "error"
	}
	return "unknown"
}

// DIF special-function byte values.
const (
	difManufacturerSpecific = 0x0F
	difMoreRecordsFollow    = 0x1F
	difIdleFiller           = 0x2F
	difGlobalReadout        = 0x7F
)

const (
	maxDIFEChain = 10
	maxVIFEChain = 10
)

// rawKind is the shape of the value payload implied by the DIF data-field
// code (EN 13757-3 Table 4), before any VIF-driven reinterpretation (e.g.
// as a date/time) is applied.
type rawKind int

const (
	rawNone rawKind = iota
	rawSignedInt
	rawFloat32
	rawBCD
	rawSelection
	rawLVAR
)

// dataFieldShape describes the (kind, length) pair derived from a DIF data
// field code, per EN 13757-3 Table 4. Length is in bytes; for rawLVAR the
// length is determined later from the first payload byte.
type dataFieldShape struct {
	kind   rawKind
	length int
}

var dataFieldTable = [16]dataFieldShape{
	0:  {rawNone, 0},
	1:  {rawSignedInt, 1},
	2:  {rawSignedInt, 2},
	3:  {rawSignedInt, 3},
	4:  {rawSignedInt, 4},
	5:  {rawFloat32, 4},
	6:  {rawSignedInt, 6},
	7:  {rawSignedInt, 8},
	8:  {rawSelection, 0},
	9:  {rawBCD, 1},
	10: {rawBCD, 2},
	11: {rawBCD, 3},
	12: {rawBCD, 4},
	13: {rawLVAR, 0},
	14: {rawBCD, 6},
	15: {rawNone, 0}, // special function, handled before reaching the table
}

// dib is the parsed Data Information Block: the primary DIF plus its DIFE
// chain.
type dib struct {
	dataFieldCode byte
	function      Function
	storageNumber uint64
	tariff        uint64
	subunit       uint64
}

func (d dib) shape() dataFieldShape { return dataFieldTable[d.dataFieldCode] }

// parseDIB parses the DIF and any DIFE continuation bytes at the cursor.
// If the primary DIF byte is one of the special-function markers (0x0F,
// 0x1F, 0x2F, 0x7F) it is returned verbatim as special and d is zero-valued
// — those bytes carry no record header of their own.
func parseDIB(cur *cursor) (d dib, special byte, err error) {
	if cur.remaining() == 0 {
		return dib{}, 0, protoErr(PayloadTruncated, "expected DIF byte")
	}
	first := cur.take(1)[0]
	switch first {
	case difManufacturerSpecific, difMoreRecordsFollow, difIdleFiller, difGlobalReadout:
		return dib{}, first, nil
	}

	d.dataFieldCode = first & 0x0F
	d.function = Function((first >> 4) & 0x03)
	d.storageNumber = uint64((first >> 6) & 0x01)

	extend := first&0x80 != 0
	for k := 0; extend; k++ {
		if k >= maxDIFEChain {
			return dib{}, 0, protoErr(DIFEChainTooLong, "exceeded 10 DIFE bytes")
		}
		if cur.remaining() == 0 {
			return dib{}, 0, protoErr(PayloadTruncated, "expected DIFE byte")
		}
		dife := cur.take(1)[0]
		storageNibble := uint64(dife & 0x0F)
		tariffBits := uint64((dife >> 4) & 0x03)
		subunitBit := uint64((dife >> 6) & 0x01)

		d.storageNumber |= storageNibble << (1 + 4*uint(k))
		d.tariff |= tariffBits << (2 * uint(k))
		d.subunit |= subunitBit << uint(k)

		extend = dife&0x80 != 0
	}
	return d, 0, nil
}
