// Package numbits packs sets of non-negative integers into compact binary
// blobs and operates on those blobs without decoding them.
//
// A numbits is a plain byte slice with no header, length prefix or magic
// number. Integer n is a member when bit n%8 of byte n/8 is set, least
// significant bit first:
//
//	{0, 3, 9}  ->  0b00001001 0b00000010  ->  []byte{0x09, 0x02}
//
// Bits past the end of a slice are zero, so blobs of different lengths can be
// combined directly and trailing zero bytes never change the set a blob
// denotes. Encode never emits trailing zero bytes; every other function
// accepts them.
//
// The blobs are stored in SQLite columns. RegisterFunctions binds the
// operations into a SQL engine so queries can merge and test stored values:
//
//	SELECT context FROM line_bits WHERE num_in_numbits(17, numbits)
//
// All functions are pure and safe for concurrent use. None of them modifies
// a slice it was given.
package numbits
