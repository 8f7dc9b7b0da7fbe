package numbits

import "math/bits"

// Union returns a new numbits holding every member of a and b. The shorter
// operand is treated as zero-extended, so the result is max(len(a), len(b))
// bytes long.
func Union(a, b []byte) []byte {
	if len(a) < len(b) {
		a, b = b, a
	}
	out := make([]byte, len(a))
	copy(out, a)
	for i := range b {
		out[i] |= b[i]
	}
	return out
}

// Intersects reports whether a and b share at least one member. It stops at
// the first common byte with an overlapping bit and never builds the
// intersection.
func Intersects(a, b []byte) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i]&b[i] != 0 {
			return true
		}
	}
	// Past n one side is implicitly zero.
	return false
}

// Contains reports whether num is a member of numbits. It inspects a single
// byte. Numbers past the end of numbits, and negative numbers, are never
// members.
func Contains(num int, numbits []byte) bool {
	if num < 0 {
		return false
	}
	byteIdx, bit := num/8, num%8
	if byteIdx >= len(numbits) {
		return false
	}
	return numbits[byteIdx]&(1<<bit) != 0
}

// Count returns the number of members in numbits.
func Count(numbits []byte) int {
	n := 0
	for _, b := range numbits {
		n += bits.OnesCount8(b)
	}
	return n
}

// Canonical returns numbits without trailing zero bytes. The result shares
// storage with numbits.
func Canonical(numbits []byte) []byte {
	end := len(numbits)
	for end > 0 && numbits[end-1] == 0 {
		end--
	}
	return numbits[:end]
}

// Equal reports whether a and b denote the same set. Blobs that differ only
// in trailing zero bytes are equal.
func Equal(a, b []byte) bool {
	a, b = Canonical(a), Canonical(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
