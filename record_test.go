package mbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDIBSimple(t *testing.T) {
	cur := &cursor{buf: []byte{0x04}}
	d, special, err := parseDIB(cur)
	require.NoError(t, err)
	assert.Zero(t, special)
	assert.Equal(t, byte(4), d.dataFieldCode)
	assert.Equal(t, FunctionInstantaneous, d.function)
	assert.Zero(t, d.storageNumber)
}

func TestParseDIBWithDIFEChain(t *testing.T) {
	// Primary DIF: data field 0x02, function max (bits 4-5 = 01), storage
	// bit6=1, extend bit7=1. DIFE: storage nibble=0x5, tariff bits=0b01,
	// subunit bit=1, no further extension.
	primary := byte(0x02) | (1 << 4) | (1 << 6) | 0x80
	dife := byte(0x05) | (0x01 << 4) | (1 << 6)
	cur := &cursor{buf: []byte{primary, dife}}

	d, special, err := parseDIB(cur)
	require.NoError(t, err)
	assert.Zero(t, special)
	assert.Equal(t, FunctionMaximum, d.function)
	// storage = bit6 of primary (1) contributes bit0; DIFE nibble 0x5
	// contributes bits 1..4 -> storageNumber = 1 | (5<<1) = 0x0B
	assert.Equal(t, uint64(0x0B), d.storageNumber)
	assert.Equal(t, uint64(0x01), d.tariff)
	assert.Equal(t, uint64(0x01), d.subunit)
}

func TestParseDIBSpecialFunctions(t *testing.T) {
	tests := []struct {
		name string
		b    byte
	}{
		{"manufacturer specific", difManufacturerSpecific},
		{"more records follow", difMoreRecordsFollow},
		{"idle filler", difIdleFiller},
		{"global readout", difGlobalReadout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := &cursor{buf: []byte{tt.b}}
			_, special, err := parseDIB(cur)
			require.NoError(t, err)
			assert.Equal(t, tt.b, special)
		})
	}
}

func TestParseDIBChainTooLong(t *testing.T) {
	buf := make([]byte, 0, 12)
	buf = append(buf, 0x82) // extend bit set, data field 2
	for i := 0; i < 11; i++ {
		buf = append(buf, 0x80) // each DIFE keeps extending
	}
	cur := &cursor{buf: buf}
	_, _, err := parseDIB(cur)
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, DIFEChainTooLong, pe.Code)
}

func TestParseVIBPrimaryEnergy(t *testing.T) {
	cur := &cursor{buf: []byte{0x04}}
	desc, err := parseVIB(cur)
	require.NoError(t, err)
	assert.Equal(t, "Wh", desc.unit)
	scaled, exp := desc.transform.apply(1234)
	assert.Equal(t, 0, exp)
	assert.Equal(t, float64(1234), scaled)
}

func TestParseVIBVolume(t *testing.T) {
	// VIF 0x13: volume group base 0x10, low bits 0x03 -> exponent -6+3=-3.
	cur := &cursor{buf: []byte{0x13}}
	desc, err := parseVIB(cur)
	require.NoError(t, err)
	assert.Equal(t, "m³", desc.unit)
	scaled, exp := desc.transform.apply(1000)
	assert.Equal(t, -3, exp)
	assert.InDelta(t, 1.0, scaled, 1e-9)
}

func TestParseVIBExtensionTable(t *testing.T) {
	// 0x7B (pointer to first extension) then 0x20 (Volts, fixed).
	cur := &cursor{buf: []byte{0x7B, 0x20}}
	desc, err := parseVIB(cur)
	require.NoError(t, err)
	assert.Equal(t, "V", desc.unit)
}

func TestParseVIBCombinableVIFE(t *testing.T) {
	// 0x84 with extend bit set on primary would require 2-byte DIF; here
	// we only need to chain one combinable VIFE after a plain VIF.
	// VIF 0x04 with extend bit set (0x84), followed by combinable VIFE
	// 0x01 (tariff 1 modifier, no further extension).
	cur := &cursor{buf: []byte{0x84, 0x01}}
	desc, err := parseVIB(cur)
	require.NoError(t, err)
	assert.Equal(t, "Wh (tariff 1)", desc.unit)
}

func TestParseVIBUnknownCode(t *testing.T) {
	// 0x7E is the request-only "any VIF" wildcard; illegal in a response.
	cur := &cursor{buf: []byte{0x7E}}
	_, err := parseVIB(cur)
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, UnknownVIF, pe.Code)
}

func TestDecodeBCDPositive(t *testing.T) {
	// BCD 0x12 0x34 little-endian -> digits read from the high byte down:
	// byte[1]=0x34 high=3 low=4, byte[0]=0x12 high=1 low=2 => 3412.
	v, isErr, err := decodeBCD([]byte{0x12, 0x34})
	require.NoError(t, err)
	assert.False(t, isErr)
	assert.Equal(t, int64(3412), v)
}

func TestDecodeBCDNegativeSignNibble(t *testing.T) {
	v, isErr, err := decodeBCD([]byte{0x12, 0xF4})
	require.NoError(t, err)
	assert.False(t, isErr)
	assert.Equal(t, int64(-412), v)
}

func TestDecodeBCDInvalidNibble(t *testing.T) {
	_, isErr, err := decodeBCD([]byte{0xAB})
	require.NoError(t, err)
	assert.True(t, isErr)
}

func TestDecodeLVARAsciiText(t *testing.T) {
	// Selector 0x03: 3-byte ASCII string, stored reversed on the wire.
	cur := &cursor{buf: []byte{0x03, 'C', 'B', 'A'}}
	val, exp, err := decodeLVAR(cur, vifDescriptor{})
	require.NoError(t, err)
	assert.Zero(t, exp)
	assert.Equal(t, ValueString, val.Kind)
	assert.Equal(t, "ABC", val.Str)
}

func TestDecodeLVARPositiveBCD(t *testing.T) {
	// Selector 0xC0: 1-byte positive BCD.
	cur := &cursor{buf: []byte{0xC0, 0x12}}
	val, _, err := decodeLVAR(cur, vifDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, ValueBCD, val.Kind)
	assert.Equal(t, int64(12), val.Int)
}

func TestDecodeLVARNegativeBCD(t *testing.T) {
	// Selector 0xD0: 1-byte negative BCD.
	cur := &cursor{buf: []byte{0xD0, 0x12}}
	val, _, err := decodeLVAR(cur, vifDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, ValueBCD, val.Kind)
	assert.Equal(t, int64(-12), val.Int)
}

func TestDecodeLVARBinary(t *testing.T) {
	// Selector 0xE1: 2-byte binary number, little-endian.
	cur := &cursor{buf: []byte{0xE1, 0xD2, 0x04}}
	val, _, err := decodeLVAR(cur, vifDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, ValueSignedInt, val.Kind)
	assert.Equal(t, int64(1234), val.Int)
}

func TestDecodeDateTimeCP16(t *testing.T) {
	// day=15 (0x0F), month=6, year=24 -> 2024.
	day := byte(15)
	month := byte(6)
	yearLow := byte(24 & 0x07)
	yearHigh := byte((24 >> 3) & 0x0F)
	b0 := day | (yearLow << 5)
	b1 := month | (yearHigh << 4)
	val, _, err := decodeDateTime([]byte{b0, b1}, dateCP16)
	require.NoError(t, err)
	assert.Equal(t, ValueDate, val.Kind)
	assert.Equal(t, 15, val.Day)
	assert.Equal(t, 6, val.Month)
	assert.Equal(t, 2024, val.Year)
}

func TestDecodeDateTimeCP32Validity(t *testing.T) {
	min := byte(30) | 0x80 // invalid bit set
	hour := byte(10)
	day := byte(5)
	month := byte(3)
	b := []byte{min, hour, day, month}
	val, _, err := decodeDateTime(b, dateCP32)
	require.NoError(t, err)
	assert.False(t, val.Valid)
	assert.Equal(t, 30, val.Minute)
}

func TestDecodeDateTimeOutOfRange(t *testing.T) {
	_, _, err := decodeDateTime([]byte{0x3F, 0x00}, dateCP16) // day=31, month=0
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, InvalidDateTime, pe.Code)
}

func TestParseRecordsMoreRecordsFollow(t *testing.T) {
	buf := []byte{
		difMoreRecordsFollow,
		0x04, 0x04, 0xD2, 0x04, 0x00, 0x00, // energy record, value 1234
	}
	cur := &cursor{buf: buf}
	records, more, trailer, err := parseRecords(cur, DirectionSlaveToMaster)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Nil(t, trailer)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1234), records[0].Value.Int)
}

func TestParseRecordsManufacturerTrailer(t *testing.T) {
	buf := []byte{difManufacturerSpecific, 0xAA, 0xBB, 0xCC}
	cur := &cursor{buf: buf}
	records, more, trailer, err := parseRecords(cur, DirectionSlaveToMaster)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Nil(t, records)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, trailer)
}

func TestParseRecordsAllOnesIsError(t *testing.T) {
	buf := []byte{0x04, 0x04, 0xFF, 0xFF, 0xFF, 0xFF}
	cur := &cursor{buf: buf}
	records, _, _, err := parseRecords(cur, DirectionSlaveToMaster)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ValueError, records[0].Value.Kind)
	assert.Equal(t, byte(0xFF), records[0].Value.ErrorCode)
}
