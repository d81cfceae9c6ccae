package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"
)

// seeded from the clock so names stay unique across runs against a shared database
var testSequence = uint64(time.Now().UnixNano() % 1000000)

// NextSequence returns next unique sequence number
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName generates a unique name with given prefix
// Example: UniqueName("fingerprint") -> "fingerprint_123456"
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}
