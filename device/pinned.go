package device

// HostPinnedAllocator is a PinnedAllocator backed by plain Go heap memory, page-locked
// with mlock(2) where available (see pinned_linux.go / pinned_other.go). A real binding
// would instead call the accelerator runtime's own pinned-memory allocator (e.g.
// cudaHostAlloc); this one is good enough to exercise and test the staging protocol.
type HostPinnedAllocator struct{}

// AllocPinned implements PinnedAllocator.
func (HostPinnedAllocator) AllocPinned(size int64) ([]byte, func(), error) {
	buf := make([]byte, size)
	lockPinned(buf)
	freed := false
	free := func() {
		if freed {
			return
		}
		freed = true
		unlockPinned(buf)
	}
	return buf, free, nil
}
