package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashTitle returns SHA-256(normalizedTitle) hex-encoded.
func HashTitle(normalizedTitle string) string {
	sum := sha256.Sum256([]byte(normalizedTitle))
	return hex.EncodeToString(sum[:])
}

// HashContent returns SHA-256(normalizedTitle + "\n" + summary + "\n" + content).
func HashContent(normalizedTitle, summary, content string) string {
	sum := sha256.Sum256([]byte(normalizedTitle + "\n" + summary + "\n" + content))
	return hex.EncodeToString(sum[:])
}

// ContentKey is HashContent's content-addressable identity: the same value,
// named for its use as a candidate dedup key rather than a field hash.
// Kept distinct from the (source_id, hash_title) window rule in
// store.InsertItem, which remains the spec's dedup authority; this is a
// building block for a future content-addressable cache, not a second
// dedup path.
func ContentKey(normalizedTitle, summary, content string) string {
	return HashContent(normalizedTitle, summary, content)
}
