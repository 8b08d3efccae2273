package graph

import (
	"encoding/base64"

	"github.com/zeebo/blake3"
)

// TextToDigest computes the storage identity of a text string: the first
// 6 bytes of its BLAKE3 hash, URL-safe base64 encoded. Byte-identical
// texts always map to the same digest, which is what makes text blobs
// and words deduplicate structurally.
func TextToDigest(text string) string {
	sum := blake3.Sum256([]byte(text))
	return base64.URLEncoding.EncodeToString(sum[:6])
}
