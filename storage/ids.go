package storage

import (
	"sync/atomic"

	"github.com/typedb/typedb-sub004/codec"
	"github.com/typedb/typedb-sub004/schema"
)

// idCounter mints locally-unique suffixes for NewThingID. A real
// deployment would derive thing ids from a durable counter or UUID
// source; this is enough to drive the engine end to end within one
// process.
var idCounter uint64

// NewThingID mints a schema.ThingID safe to embed as a key component:
// L85-encoding a monotonic counter guarantees the id never contains the
// 0x00 separator byte that composite keys in this package split on.
func NewThingID() schema.ThingID {
	n := atomic.AddUint64(&idCounter, 1)
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(n)
		n >>= 8
	}
	return schema.ThingID(codec.Encode(buf))
}
