package numbits

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/FocuswithJustin/numbits/core/errors"
)

// ToBitmap converts numbits into a Roaring bitmap. Members above
// math.MaxUint32 cannot be represented and are dropped.
func ToBitmap(numbits []byte) *roaring.Bitmap {
	rb := roaring.New()
	for num := range All(numbits) {
		if uint64(num) > math.MaxUint32 {
			break
		}
		rb.Add(uint32(num))
	}
	return rb
}

// FromBitmap encodes the members of rb. It returns ErrEmptySet for an empty
// bitmap.
func FromBitmap(rb *roaring.Bitmap) ([]byte, error) {
	if rb == nil || rb.IsEmpty() {
		return nil, ErrEmptySet
	}
	maxNum := rb.Maximum()
	if uint64(maxNum) > uint64(math.MaxInt)-8 {
		return nil, errors.NewValidation("bitmap", "maximum member is out of range")
	}

	b := make([]byte, int(maxNum)/8+1)
	it := rb.Iterator()
	for it.HasNext() {
		num := int(it.Next())
		b[num/8] |= 1 << (num % 8)
	}
	return b, nil
}
