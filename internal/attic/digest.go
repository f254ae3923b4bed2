package attic

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is the 32-byte BLAKE3 hash of an object's raw bytes. It is the
// object's identity: the storage key on disk and the primary key of its
// metadata row.
type Digest [32]byte

// ComputeDigest hashes raw content bytes. Digests are always computed on
// uncompressed bytes so dedup is unaffected by the compression choice.
func ComputeDigest(data []byte) Digest {
	return blake3.Sum256(data)
}

// String returns the hex encoding used in SQL, file names, and logs.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return d, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(d[:], decoded)
	return d, nil
}
