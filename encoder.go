package mbus

// Master-to-slave C-field base opcodes.
const (
	cSNDNKE = 0x40
	cSNDUD  = 0x53
	cREQUD1 = 0x5A
	cREQUD2 = 0x5B
)

const maxLongPayload = 252 // L is one byte; L = 3 + len(payload)

// withFCVFCB sets bit4 (FCV) and bit5 (FCB) on base per EN 13757-2, without
// tracking any FCB state itself — FCB state lives in the session (fcb.go).
func withFCVFCB(base byte, fcv, fcb bool) byte {
	c := base
	if fcv {
		c |= 0x10
	}
	if fcb {
		c |= 0x20
	}
	return c
}

// EncodeShort builds a 5-byte short frame: 10 C A checksum 16.
func EncodeShort(c, a byte) []byte {
	buf := []byte{startShort, c, a, 0, stopByte}
	buf[3] = checksum(buf[1:3])
	return buf
}

// EncodeLong builds a long frame carrying payload after C, A, CI.
// Returns a CallerError if payload exceeds the 252-byte limit L can encode.
func EncodeLong(c, a, ci byte, payload []byte) ([]byte, error) {
	if len(payload) > maxLongPayload {
		return nil, callerErr("payload exceeds 252 bytes, cannot be represented by a single-byte L")
	}
	l := byte(3 + len(payload))
	buf := make([]byte, 0, int(l)+6)
	buf = append(buf, startLong, l, l, startLong, c, a, ci)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf[4:4+int(l)]), stopByte)
	return buf, nil
}

// EncodeSNDNKE builds a link-reset request to address. SND_NKE never
// carries FCV/FCB.
func EncodeSNDNKE(address byte) ([]byte, error) {
	if err := validateTargetAddress(address); err != nil {
		return nil, err
	}
	return EncodeShort(cSNDNKE, address), nil
}

// EncodeREQUD2 builds a class-2 data request (measurement retrieval) with
// the given FCB, FCV always set.
func EncodeREQUD2(address byte, fcb bool) ([]byte, error) {
	if err := validateTargetAddress(address); err != nil {
		return nil, err
	}
	return EncodeShort(withFCVFCB(cREQUD2, true, fcb), address), nil
}

// EncodeREQUD1 builds a class-1 data request (alarms) with the given FCB,
// FCV always set.
func EncodeREQUD1(address byte, fcb bool) ([]byte, error) {
	if err := validateTargetAddress(address); err != nil {
		return nil, err
	}
	return EncodeShort(withFCVFCB(cREQUD1, true, fcb), address), nil
}

// EncodeSNDUD builds a send-user-data long frame with the given FCB, FCV
// always set.
func EncodeSNDUD(address byte, ci byte, payload []byte, fcb bool) ([]byte, error) {
	if err := validateTargetAddress(address); err != nil {
		return nil, err
	}
	return EncodeLong(withFCVFCB(cSNDUD, true, fcb), address, ci, payload)
}
