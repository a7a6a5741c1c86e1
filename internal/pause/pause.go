// Package pause provides a short busy-delay primitive: an
// architecture-appropriate CPU hint falling back to a goroutine yield. Go
// does not expose the x86 PAUSE / ARM YIELD intrinsic directly, so this uses
// runtime.Gosched, which yields the calling goroutine without parking it on
// any blocking wait.
package pause

import "runtime"

// CPU performs one short busy-delay unit.
func CPU() {
	runtime.Gosched()
}

// Spin calls CPU n times, for a bounded intra-sweep pause loop.
func Spin(n int) {
	for i := 0; i < n; i++ {
		CPU()
	}
}
