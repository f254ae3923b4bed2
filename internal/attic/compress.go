package attic

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression tags stored in object metadata. Changing these values
// invalidates existing rows, so treat them as protocol constants.
const (
	// CompressionNone marks blobs stored uncompressed. Used when zstd
	// produces output no smaller than the input (images, video, anything
	// already compressed).
	CompressionNone = "none"

	// CompressionZstd marks zstd-compressed blobs. The usual case for
	// HTML and other text content.
	CompressionZstd = "zstd"
)

var (
	// Shared encoder/decoder. EncodeAll and DecodeAll on nil-source
	// instances are safe for concurrent use.
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// compress returns the blob bytes to write and the compression tag.
// Incompressible content falls back to CompressionNone rather than paying
// for a larger blob.
func compress(data []byte) ([]byte, string) {
	compressed := zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data, CompressionNone
	}
	return compressed, CompressionZstd
}

// decompress reverses compress according to the stored tag.
func decompress(data []byte, tag string) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression tag: %q", tag)
	}
}
