package numbits

import (
	"iter"
	"slices"
	"strconv"

	"github.com/FocuswithJustin/numbits/core/errors"
)

// ErrEmptySet is returned when encoding a set with no members. An empty set
// has no canonical numbits; callers must not persist one.
var ErrEmptySet = &errors.ValidationError{
	Field:   "nums",
	Message: "cannot encode an empty set",
}

// Encode packs nums into a numbits. Duplicates are ignored and order does not
// matter. The result is exactly max(nums)/8+1 bytes long.
//
// It returns ErrEmptySet if nums is empty and a *errors.ValidationError if any
// member is negative.
func Encode(nums []int) ([]byte, error) {
	return EncodeSeq(slices.Values(nums))
}

// EncodeSeq is like Encode but reads its members from seq. The sequence is
// read once.
func EncodeSeq(seq iter.Seq[int]) ([]byte, error) {
	var b []byte
	for num := range seq {
		if num < 0 {
			return nil, &errors.ValidationError{
				Field:   "nums",
				Value:   strconv.Itoa(num),
				Message: "negative number " + strconv.Itoa(num) + " cannot be encoded",
			}
		}
		if idx := num / 8; idx >= len(b) {
			b = append(b, make([]byte, idx+1-len(b))...)
		}
		b[num/8] |= 1 << (num % 8)
	}
	if len(b) == 0 {
		return nil, ErrEmptySet
	}
	return b, nil
}

// Decode returns the members of numbits in strictly increasing order.
// A zero-length numbits decodes to an empty, non-nil slice.
func Decode(numbits []byte) []int {
	nums := make([]int, 0, Count(numbits))
	for byteIdx, b := range numbits {
		if b == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				nums = append(nums, byteIdx*8+bit)
			}
		}
	}
	return nums
}

// All returns an iterator over the members of numbits in increasing order.
func All(numbits []byte) iter.Seq[int] {
	return func(yield func(int) bool) {
		for byteIdx, b := range numbits {
			for bit := 0; b != 0 && bit < 8; bit++ {
				if b&(1<<bit) == 0 {
					continue
				}
				if !yield(byteIdx*8 + bit) {
					return
				}
			}
		}
	}
}
