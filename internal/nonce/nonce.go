// Package nonce supplies process-wide unique nonces for signed CLOB requests.
//
// A single seed is drawn once at process start (current Unix nanos); every
// subsequent nonce combines that seed with an atomically incremented
// counter. The seed and counter are package-level state shared by every
// caller in the process.
package nonce

import (
	"sync/atomic"
	"time"
)

var (
	seed    = uint64(time.Now().UnixNano())
	counter atomic.Uint64
)

// Next returns a monotonically unique nonce for this process.
func Next() uint64 {
	return seed + counter.Add(1)
}
