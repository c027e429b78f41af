package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// GenConversationID generates a unique conversation ID from the current UTC
// nanosecond timestamp and an atomic sequence number. The sequence keeps IDs
// unique when multiple conversations are created within the same nanosecond.
func GenConversationID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("conv-%d-%d", n, s)
}

// GenMessageID generates a unique message ID. Format: "msg-<timestamp>-<seq>".
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%d-%d", n, s)
}
