//go:build linux

package device

import (
	"k8s.io/klog/v2"

	"golang.org/x/sys/unix"
)

// lockPinned page-locks buf with mlock(2) so the kernel never pages it out while an
// asynchronous device<->host DMA may be reading or writing it, the way a real pinned
// (page-locked) host allocator would. It degrades to a no-op (logged at verbosity 2 on
// every failed call) rather than
// failing the allocation outright, since mlock commonly fails for an unprivileged
// process past RLIMIT_MEMLOCK -- staging still works, just without the page-lock
// guarantee.
func lockPinned(buf []byte) {
	if len(buf) == 0 {
		return
	}
	if err := unix.Mlock(buf); err != nil {
		klog.V(2).Infof("device: mlock(%d bytes) failed, continuing without page-lock: %v", len(buf), err)
	}
}

func unlockPinned(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Munlock(buf)
}
