package mbus

import (
	"context"
	"time"
)

// Transport is the byte-oriented collaborator the session orchestrator
// drives. It is the only externally shared resource; the core
// never constructs one — serial/TCP/RFC2217 implementations live outside
// this module.
//
// A Transport implementation only has to provide these three
// primitives: a blocking byte write, a bounded-wait byte read, and a
// liveness check. The session layers framing, retries, and FCB
// bookkeeping on top.
type Transport interface {
	// Write suspends until all of b has been flushed. It returns a
	// ConnectionError-wrapped error on disconnect.
	Write(ctx context.Context, b []byte) error

	// Read suspends until either exactly n bytes are available or timeout
	// expires. On timeout it returns (nil, nil) — an empty result, not an
	// error; it errors only on disconnect.
	Read(ctx context.Context, n int, timeout time.Duration) ([]byte, error)

	// IsConnected reports whether the transport believes itself usable.
	IsConnected() bool
}
