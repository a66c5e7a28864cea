package mbus

import "fmt"

// ConnectionError indicates the transport reported a disconnect. It is
// never retried by the session and is surfaced to the caller immediately.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mbus: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError indicates transport.Read returned an empty result while the
// decoder still expected more bytes. Retryable at the session level; once
// retries are exhausted it is surfaced together with the decoder state it
// was waiting in.
type TimeoutError struct {
	// WaitingFor names what the decoder was waiting for when the timeout
	// occurred, e.g. "header" or "payload".
	WaitingFor string
	Attempts   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mbus: timeout waiting for %s after %d attempt(s)", e.WaitingFor, e.Attempts)
}

// ProtocolCode is the closed set of protocol-validation failure kinds.
type ProtocolCode int

const (
	InvalidStartByte ProtocolCode = iota
	LengthMismatch
	ChecksumMismatch
	StopByteMissing
	UnexpectedFrameKind
	AddressMismatch
	UnknownCI
	DIFEChainTooLong
	VIFEChainTooLong
	UnknownVIF
	PayloadTruncated
	InvalidBCD
	InvalidDateTime
)

func (c ProtocolCode) String() string {
	switch c {
	case InvalidStartByte:
		return "invalid start byte"
	case LengthMismatch:
		return "length mismatch"
	case ChecksumMismatch:
		return "checksum mismatch"
	case StopByteMissing:
		return "stop byte missing"
	case UnexpectedFrameKind:
		return "unexpected frame kind"
	case AddressMismatch:
		return "address mismatch"
	case UnknownCI:
		return "unknown CI field"
	case DIFEChainTooLong:
		return "DIFE chain too long"
	case VIFEChainTooLong:
		return "VIFE chain too long"
	case UnknownVIF:
		return "unknown VIF"
	case PayloadTruncated:
		return "payload truncated"
	case InvalidBCD:
		return "invalid BCD nibble"
	case InvalidDateTime:
		return "invalid date/time field"
	}
	return "unknown protocol error"
}

// ProtocolError is raised by the checksum primitives, the frame decoder, or
// the DRH parser whenever a wire-level or application-level invariant is
// violated. It is retryable at the session level: a corrupted datagram may
// simply reflect transient line noise.
type ProtocolError struct {
	Code ProtocolCode
	// Byte carries the offending byte for codes that reference one
	// (UnknownCI, UnknownVIF).
	Byte byte
	// Path records which VIF/VIFE table chain produced an UnknownVIF
	// failure, e.g. "primary" or "primary->first-extension".
	Path string
	Detail string
}

func (e *ProtocolError) Error() string {
	msg := "mbus: protocol error: " + e.Code.String()
	switch e.Code {
	case UnknownCI, UnknownVIF:
		msg += fmt.Sprintf(" (0x%02X)", e.Byte)
	}
	if e.Path != "" {
		msg += " path=" + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func protoErr(code ProtocolCode, detail string) error {
	return &ProtocolError{Code: code, Detail: detail}
}

func protoErrByte(code ProtocolCode, b byte, detail string) error {
	return &ProtocolError{Code: code, Byte: b, Detail: detail}
}

// CallerError indicates invalid input to an encoder or configuration call.
// It is never retried; the caller must fix its arguments.
type CallerError struct {
	Detail string
}

func (e *CallerError) Error() string { return "mbus: caller error: " + e.Detail }

func callerErr(detail string) error { return &CallerError{Detail: detail} }
