package mbus

import (
	"context"
	"errors"
	"time"

	"github.com/GoAethereal/cancel"
)

// Session is the stateful orchestrator driving a single shared bus. It
// owns retry/timeout handling, per-address FCB bookkeeping, and the
// bus-lock serializing concurrent callers — the Transport itself carries
// no such state.
//
// Modeled on a mutex-serialized client that drives a connection's
// send/receive under a cancel.Context; here the send/receive pair is a
// Write followed by a progressive Decoder fed from repeated bounded
// Reads.
type Session struct {
	transport Transport
	cfg       Config
	fcb       *fcbState
	mu        chanMutex
}

// NewSession constructs a Session bound to transport, validating cfg.
func NewSession(transport Transport, cfg Config) (*Session, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return &Session{
		transport: transport,
		cfg:       cfg,
		fcb:       newFCBState(),
		mu:        newChanMutex(),
	}, nil
}

// chanMutex behaves like sync.Mutex except a pending lock attempt can be
// abandoned via a context: a buffered channel holding a single token,
// so a caller waiting on the bus can still be canceled.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) lock(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m:
		return nil
	}
}

func (m chanMutex) unlock() {
	m <- struct{}{}
}

// Reset issues SND_NKE to address, clearing its FCB state so the next
// ReadRecords begins at FCB=1.
func (s *Session) Reset(ctx cancel.Context, address byte) error {
	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()
	return s.resetLocked(ctx, address)
}

// resetLocked performs the SND_NKE exchange and clears address's FCB
// state. Callers must already hold mu.
func (s *Session) resetLocked(ctx cancel.Context, address byte) error {
	req, err := EncodeSNDNKE(address)
	if err != nil {
		return err
	}
	if _, err := s.exchange(ctx, "SND_NKE", req, address, KindAck); err != nil {
		return err
	}
	s.fcb.reset(address)
	s.cfg.logger().WithField("address", address).Debug("mbus: link reset")
	return nil
}

// ReadRecords performs a class-2 retrieval from address, following the
// multi-datagram FCB-toggle protocol until the slave reports no further
// records. It opens with a link reset — harmless for devices that don't
// require it, load-bearing for those that do — so the first REQ_UD2
// always starts at FCB=1.
func (s *Session) ReadRecords(ctx cancel.Context, address byte) ([]Record, error) {
	if err := s.mu.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	if err := s.resetLocked(ctx, address); err != nil {
		return nil, err
	}

	var all []Record
	for {
		fcb := s.fcb.next(address)
		dg, used, err := s.readOne(ctx, address, fcb)
		if err != nil {
			return nil, err
		}
		s.fcb.toggle(address, used)
		if dg == nil {
			// Ack: the slave has no (more) data.
			return all, nil
		}
		all = append(all, dg.Records...)
		if !dg.MoreRecordsFollow {
			return all, nil
		}
	}
}

// readOne performs a single REQ_UD2 exchange with the given FCB,
// applying the FCBFallback opt-in: if the exchange at fcb times out and
// this is the first request after a reset, one additional exchange (with
// its own MaxRetries attempts) is made with the opposite FCB before the
// timeout is surfaced. It returns
// the FCB actually used for the exchange that succeeded, so the caller
// toggles from the right starting point.
func (s *Session) readOne(ctx cancel.Context, address byte, fcb bool) (*Datagram, bool, error) {
	req, err := EncodeREQUD2(address, fcb)
	if err != nil {
		return nil, fcb, err
	}
	frame, err := s.exchange(ctx, "REQ_UD2", req, address, KindLong, KindAck)
	if err == nil {
		dg, err := datagramFromREQUD2Response(frame)
		return dg, fcb, err
	}

	// address has an FCB entry once a datagram has been delivered since
	// the last reset; the fallback applies only before that.
	s.fcb.mu.Lock()
	_, delivered := s.fcb.bits[address]
	s.fcb.mu.Unlock()

	var timeoutErr *TimeoutError
	if !s.cfg.FCBFallback || delivered || !errors.As(err, &timeoutErr) {
		return nil, fcb, err
	}

	s.cfg.logger().WithField("address", address).Warn("mbus: retrying with opposite FCB after timeout")
	altFCB := !fcb
	altReq, err := EncodeREQUD2(address, altFCB)
	if err != nil {
		return nil, fcb, err
	}
	frame, err = s.exchange(ctx, "REQ_UD2 (FCB fallback)", altReq, address, KindLong, KindAck)
	if err != nil {
		return nil, fcb, err
	}
	dg, err := datagramFromREQUD2Response(frame)
	return dg, altFCB, err
}

// datagramFromREQUD2Response extracts the Datagram from a REQ_UD2
// exchange's response frame. An Ack is legal only when the slave has no
// (more) data; it is reported as a nil Datagram with no error, distinct
// from a Long frame whose CI isn't a variable-data response.
func datagramFromREQUD2Response(frame Frame) (*Datagram, error) {
	if frame.Kind() == KindAck {
		return nil, nil
	}
	long := frame.(Long)
	if long.Datagram == nil {
		return nil, protoErrByte(UnknownCI, long.CI, "REQ_UD2 response was not a variable-data response")
	}
	return long.Datagram, nil
}

// exchange writes req and decodes the single response frame it expects,
// making up to cfg.MaxRetries attempts in total on TimeoutError/ProtocolError.
// ConnectionError is never retried and is surfaced on the first
// occurrence.
func (s *Session) exchange(ctx cancel.Context, op string, req []byte, address byte, allowed ...FrameKind) (Frame, error) {
	log := s.cfg.logger().WithField("op", op).WithField("address", address)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			log.WithField("attempt", attempt).Debug("mbus: retrying")
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		frame, err := s.attempt(ctx, req, address, allowed...)
		if err == nil {
			return frame, nil
		}

		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			timeoutErr.Attempts = attempt
		}
		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Debug("mbus: attempt failed")
	}
	return nil, lastErr
}

// attempt performs exactly one write/decode round, without retry.
func (s *Session) attempt(ctx cancel.Context, req []byte, address byte, allowed ...FrameKind) (Frame, error) {
	if !s.transport.IsConnected() {
		return nil, &ConnectionError{Op: "attempt", Err: context.Canceled}
	}
	if err := s.transport.Write(ctx, req); err != nil {
		return nil, &ConnectionError{Op: "write", Err: err}
	}

	dec := NewDecoder(WithExpectedAddress(address), WithAllowedFrameKinds(allowed...))
	// stage names what each non-terminal decoder state is waiting for.
	stage := map[decoderState]string{
		stateExpectFirst:      "start byte",
		stateExpectLengthPair: "length field",
		stateExpectShortRest:  "short frame body",
		stateExpectStart2:     "second start byte",
		stateExpectHeader:     "header",
		stateExpectPayload:    "payload",
		stateExpectChecksum:   "checksum",
		stateExpectStop:       "stop byte",
	}
	for !dec.IsDone() {
		n := dec.BytesNeeded()
		if n == 0 {
			break
		}
		chunk, err := s.transport.Read(ctx, n, s.readTimeout())
		if err != nil {
			return nil, &ConnectionError{Op: "read", Err: err}
		}
		if len(chunk) == 0 {
			return nil, &TimeoutError{WaitingFor: stage[dec.state], Attempts: 1}
		}
		if err := dec.Feed(chunk); err != nil {
			return nil, err
		}
	}
	return dec.TakeFrame()
}

// readTimeout is the per-Read deadline: the configured base timeout,
// covering line turnaround on top of the transport's own byte latency.
func (s *Session) readTimeout() time.Duration {
	return s.cfg.BaseTimeout
}
