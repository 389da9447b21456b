package group

import "sync/atomic"

// tagCounter issues the monotonically increasing tags each collective call stamps its
// transport round with. It is widened to uint64 internally so overflow only ever
// happens at the documented uint32 transport boundary, not after a mere 4 billion
// collectives.
type tagCounter struct {
	next uint64
}

// nextTag returns the next tag and advances the counter.
func (c *tagCounter) nextTag() uint64 {
	return atomic.AddUint64(&c.next, 1) - 1
}

// wireTag truncates a widened tag to the uint32 the transport layer actually carries on
// the wire, matching this lineage's transport tag width. Two distinct widened tags
// that truncate to the same uint32 can only collide after 2^32 collectives on one
// Group, the same wraparound behavior this lineage has always had.
func wireTag(t uint64) uint32 {
	return uint32(t)
}
