//go:build !linux

package device

// lockPinned is a no-op on platforms without mlock(2) semantics exposed the same way;
// staging still works, just without the page-lock guarantee.
func lockPinned(buf []byte) {}

func unlockPinned(buf []byte) {}
