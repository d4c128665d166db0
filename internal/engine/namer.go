package engine

import (
	"strconv"
	"sync/atomic"
)

// Namer hands out unique stage names. Each engine owns one, so names are
// unique per engine rather than per process.
type Namer struct {
	next atomic.Uint64
}

// Next returns prefix followed by the next sequence number, starting at 0.
func (n *Namer) Next(prefix string) string {
	return prefix + strconv.FormatUint(n.next.Add(1)-1, 10)
}
