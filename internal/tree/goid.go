package tree

import (
	"runtime"
	"sync"
)

var goidBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

// goroutineID returns the id of the calling goroutine, parsed from the
// "goroutine N [...]" header of runtime.Stack. Returns 0 if parsing fails,
// which disables the self-call checks rather than misreporting them.
func goroutineID() int64 {
	bp := goidBufPool.Get().(*[]byte)
	defer goidBufPool.Put(bp)
	// Only the header line is needed; a truncated stack is fine.
	n := runtime.Stack(*bp, false)
	return parseGoroutineID((*bp)[:n])
}

func parseGoroutineID(stack []byte) int64 {
	const prefix = "goroutine "
	if len(stack) <= len(prefix) || string(stack[:len(prefix)]) != prefix {
		return 0
	}
	var id int64
	for _, c := range stack[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
