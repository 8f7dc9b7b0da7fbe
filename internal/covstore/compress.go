package covstore

import (
	"bufio"
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/numbits/core/errors"
)

// Compression names a stream codec for Export and Import.
type Compression string

const (
	// CompressionNone writes plain JSON lines.
	CompressionNone Compression = "none"
	// CompressionXZ uses XZ (default for exports).
	CompressionXZ Compression = "xz"
	// CompressionZstd uses Zstandard.
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 uses the LZ4 frame format.
	CompressionLZ4 Compression = "lz4"
	// CompressionAuto detects the codec from magic bytes. Import only.
	CompressionAuto Compression = "auto"
)

var (
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ParseCompression validates a codec name. The empty string means xz.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return CompressionXZ, nil
	case CompressionNone, CompressionXZ, CompressionZstd, CompressionLZ4, CompressionAuto:
		return c, nil
	default:
		return "", errors.NewUnsupported("compression", s)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newCompressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionXZ, "":
		return xz.NewWriter(w)
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, errors.NewUnsupported("compression", string(c))
	}
}

func newDecompressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	if c == CompressionAuto {
		br := bufio.NewReader(r)
		detected, err := detectCompression(br)
		if err != nil {
			return nil, err
		}
		r, c = br, detected
	}

	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionXZ, "":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, errors.NewUnsupported("compression", string(c))
	}
}

// detectCompression peeks at the stream's magic bytes. Anything without a
// known magic is treated as uncompressed.
func detectCompression(br *bufio.Reader) (Compression, error) {
	magic, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", errors.NewIO("read magic bytes", "", err)
	}
	switch {
	case bytes.HasPrefix(magic, xzMagic):
		return CompressionXZ, nil
	case bytes.HasPrefix(magic, zstdMagic):
		return CompressionZstd, nil
	case bytes.HasPrefix(magic, lz4Magic):
		return CompressionLZ4, nil
	default:
		return CompressionNone, nil
	}
}
