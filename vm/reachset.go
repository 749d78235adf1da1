package vm

import "math/bits"

// ReachSet is a fixed-size bitset recording which arena slots were found
// reachable during a recycle pass.
type ReachSet struct {
	words []uint64
	n     int
}

// NewReachSet returns a cleared set of n bits.
func NewReachSet(n int) *ReachSet {
	return &ReachSet{words: make([]uint64, reachWords(n)), n: n}
}

func reachWords(n int) int {
	return (n + 63) / 64
}

// reachBytes is the accounted size of a set of n bits.
func reachBytes(n int) int {
	return reachWords(n) * 8
}

// Len returns the number of bits.
func (s *ReachSet) Len() int { return s.n }

// Mark sets bit i.
func (s *ReachSet) Mark(i int) {
	s.words[i/64] |= 1 << (uint(i) % 64)
}

// IsMarked reports whether bit i is set.
func (s *ReachSet) IsMarked(i int) bool {
	return s.words[i/64]&(1<<(uint(i)%64)) != 0
}

// ClearAll resets every bit.
func (s *ReachSet) ClearAll() {
	clear(s.words)
}

// Count returns the number of set bits.
func (s *ReachSet) Count() int {
	c := 0
	for _, w := range s.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Grow extends the set to n bits. Existing bits are kept; new bits are
// clear. Shrinking is not supported and is ignored.
func (s *ReachSet) Grow(n int) {
	if n <= s.n {
		return
	}
	if need := reachWords(n); need > len(s.words) {
		words := make([]uint64, need)
		copy(words, s.words)
		s.words = words
	}
	s.n = n
}
