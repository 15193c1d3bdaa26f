// Package contenthash computes the content-addressing key for uploaded
// files. The key is the lowercase hex SHA-1 of the full byte content, so
// byte-identical uploads map to the same key regardless of who uploads them.
package contenthash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
)

// BlockSize is the read granularity used while digesting, chosen to bound
// memory use regardless of file size.
const BlockSize = 8 * 1024

// Sum digests the entire reader and returns the hex-encoded SHA-1. The
// reader is rewound to offset 0 afterwards so the caller can immediately
// re-read the same stream for storage.
func Sum(rs io.ReadSeeker) (string, error) {
	h := sha1.New()
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(h, rs, buf); err != nil {
		return "", fmt.Errorf("digest content: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
