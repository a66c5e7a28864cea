package mbus

// decoderState is the tagged state of the progressive frame decoder.
// Transitions are exhaustive and branch only on bytes actually
// delivered via Feed.
type decoderState int

const (
	stateExpectFirst decoderState = iota
	stateExpectLengthPair
	stateExpectShortRest
	stateExpectStart2
	stateExpectHeader
	stateExpectPayload
	stateExpectChecksum
	stateExpectStop
	stateDoneAck
	stateDoneFrame // terminal for both ShortControl and Long
	stateError
)

// Direction distinguishes master->slave from slave->master traffic for the
// handful of VIF/DIF codes that are direction-sensitive.
type Direction int

const (
	DirectionSlaveToMaster Direction = iota
	DirectionMasterToSlave
)

// DecoderOption configures a Decoder at construction time.
type DecoderOption func(*Decoder)

// WithExpectedAddress requires the decoded frame's A-field to equal addr;
// a mismatch is reported as an AddressMismatch ProtocolError.
func WithExpectedAddress(addr byte) DecoderOption {
	return func(d *Decoder) {
		a := addr
		d.expectedAddress = &a
	}
}

// WithAllowedFrameKinds restricts which frame kinds are legal for this
// decode. The initial start byte is validated against this set.
func WithAllowedFrameKinds(kinds ...FrameKind) DecoderOption {
	return func(d *Decoder) {
		d.allowed = make(map[FrameKind]bool, len(kinds))
		for _, k := range kinds {
			d.allowed[k] = true
		}
	}
}

// WithDirection sets the traffic direction used by the DRH parser for
// direction-sensitive VIF/DIF codes. Defaults to DirectionSlaveToMaster,
// the only direction the core ever needs to decode.
func WithDirection(dir Direction) DecoderOption {
	return func(d *Decoder) { d.direction = dir }
}

// Decoder is a progressive, state-dependent frame decoder. It never reads
// bytes on its own; the caller drives it by calling BytesNeeded, supplying
// exactly that many bytes to Feed, and checking IsDone/TakeFrame. All
// decoder code is pure and non-suspending.
type Decoder struct {
	state decoderState

	expectedAddress *byte
	allowed         map[FrameKind]bool
	direction       Direction

	l        byte
	c, a, ci byte
	payload  []byte
	frame    Frame
}

// NewDecoder constructs a Decoder in its initial state.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{state: stateExpectFirst}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Decoder) kindAllowed(k FrameKind) bool {
	if len(d.allowed) == 0 {
		return true
	}
	return d.allowed[k]
}

// BytesNeeded returns how many bytes Feed requires next. It is never zero
// unless the machine has reached a terminal state (done or error).
func (d *Decoder) BytesNeeded() int {
	switch d.state {
	case stateExpectFirst:
		return 1
	case stateExpectLengthPair:
		return 2
	case stateExpectShortRest:
		return 4
	case stateExpectStart2:
		return 1
	case stateExpectHeader:
		return 3
	case stateExpectPayload:
		return int(d.l) - 3
	case stateExpectChecksum:
		return 1
	case stateExpectStop:
		return 1
	default:
		return 0
	}
}

// IsDone reports whether a frame is ready to be taken via TakeFrame.
func (d *Decoder) IsDone() bool {
	return d.state == stateDoneAck || d.state == stateDoneFrame
}

// TakeFrame consumes the machine and returns the decoded frame. It is only
// legal to call once IsDone reports true.
func (d *Decoder) TakeFrame() (Frame, error) {
	if !d.IsDone() {
		return nil, callerErr("TakeFrame called before decoding finished")
	}
	f := d.frame
	d.frame = nil
	return f, nil
}

func (d *Decoder) fail(err error) error {
	d.state = stateError
	return err
}

// Feed delivers exactly BytesNeeded() bytes to the machine, validating them
// inline and transitioning state. len(chunk) must equal BytesNeeded(); a
// mismatch is a caller error, not a protocol error, since it reflects
// misuse of the API rather than a wire problem.
func (d *Decoder) Feed(chunk []byte) error {
	if need := d.BytesNeeded(); len(chunk) != need {
		return callerErr("Feed called with wrong chunk size")
	}

	switch d.state {
	case stateExpectFirst:
		return d.feedFirst(chunk[0])
	case stateExpectLengthPair:
		return d.feedLengthPair(chunk)
	case stateExpectShortRest:
		return d.feedShortRest(chunk)
	case stateExpectStart2:
		return d.feedStart2(chunk[0])
	case stateExpectHeader:
		return d.feedHeader(chunk)
	case stateExpectPayload:
		return d.feedPayload(chunk)
	case stateExpectChecksum:
		return d.feedChecksum(chunk[0])
	case stateExpectStop:
		return d.feedStop(chunk[0])
	default:
		return d.fail(callerErr("Feed called on a terminal decoder"))
	}
}

func (d *Decoder) feedFirst(b byte) error {
	switch b {
	case ackByte:
		if !d.kindAllowed(KindAck) {
			return d.fail(protoErr(UnexpectedFrameKind, "Ack not allowed for this exchange"))
		}
		d.frame = Ack{}
		d.state = stateDoneAck
		return nil
	case startShort:
		if !d.kindAllowed(KindShortControl) {
			return d.fail(protoErr(UnexpectedFrameKind, "ShortControl not allowed for this exchange"))
		}
		d.state = stateExpectShortRest
		return nil
	case startLong:
		if !d.kindAllowed(KindLong) {
			return d.fail(protoErr(UnexpectedFrameKind, "Long not allowed for this exchange"))
		}
		d.state = stateExpectLengthPair
		return nil
	default:
		return d.fail(protoErrByte(InvalidStartByte, b, "expected 0xE5, 0x10, or 0x68"))
	}
}

func (d *Decoder) feedShortRest(chunk []byte) error {
	c, a, cs, stop := chunk[0], chunk[1], chunk[2], chunk[3]
	if stop != stopByte {
		return d.fail(protoErrByte(StopByteMissing, stop, "expected 0x16"))
	}
	if want := checksum(chunk[:2]); want != cs {
		return d.fail(protoErr(ChecksumMismatch, "short frame checksum"))
	}
	if d.expectedAddress != nil && a != *d.expectedAddress {
		return d.fail(protoErrByte(AddressMismatch, a, "unexpected A-field"))
	}
	d.frame = ShortControl{C: c, A: a}
	d.state = stateDoneFrame
	return nil
}

func (d *Decoder) feedLengthPair(chunk []byte) error {
	if chunk[0] != chunk[1] {
		return d.fail(protoErr(LengthMismatch, "duplicated length bytes differ"))
	}
	if chunk[0] < 3 {
		return d.fail(protoErr(LengthMismatch, "L must be at least 3"))
	}
	d.l = chunk[0]
	d.state = stateExpectStart2
	return nil
}

func (d *Decoder) feedStart2(b byte) error {
	if b != startLong {
		return d.fail(protoErrByte(InvalidStartByte, b, "expected second 0x68"))
	}
	d.state = stateExpectHeader
	return nil
}

func (d *Decoder) feedHeader(chunk []byte) error {
	c, a, ci := chunk[0], chunk[1], chunk[2]
	if d.expectedAddress != nil && a != *d.expectedAddress {
		return d.fail(protoErrByte(AddressMismatch, a, "unexpected A-field"))
	}
	d.c, d.a, d.ci = c, a, ci
	if d.l == 3 {
		d.payload = nil
		d.state = stateExpectChecksum
		return nil
	}
	d.state = stateExpectPayload
	return nil
}

func (d *Decoder) feedPayload(chunk []byte) error {
	d.payload = append([]byte(nil), chunk...)
	d.state = stateExpectChecksum
	return nil
}

func (d *Decoder) feedChecksum(b byte) error {
	sum := []byte{d.c, d.a, d.ci}
	sum = append(sum, d.payload...)
	if want := checksum(sum); want != b {
		return d.fail(protoErr(ChecksumMismatch, "long frame checksum"))
	}
	d.state = stateExpectStop
	return nil
}

func (d *Decoder) feedStop(b byte) error {
	if b != stopByte {
		return d.fail(protoErrByte(StopByteMissing, b, "expected 0x16"))
	}
	long := Long{C: d.c, A: d.a, CI: d.ci, Payload: d.payload}
	if isVariableDataCI(d.ci) {
		dg, err := parseDatagram(d.ci, d.payload, d.direction)
		if err != nil {
			return d.fail(err)
		}
		long.Datagram = dg
	}
	d.frame = long
	d.state = stateDoneFrame
	return nil
}
