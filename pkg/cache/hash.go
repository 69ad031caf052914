package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash"
)

// Hash returns the hex SHA-256 digest of data. The pipeline uses it to
// fingerprint job files, so two byte-identical jobs share cache entries.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey builds "<kind>:<digest>" where digest covers the JSON encoding of
// parts. Options structs are encoded with their field order, so the key is
// stable for equal options.
func hashKey(kind string, parts ...any) string {
	h := sha256.New()
	writeJSON(h, parts)
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// writeJSON streams v into h. Values that cannot be encoded contribute
// nothing beyond what was written before the failure.
func writeJSON(h hash.Hash, v any) {
	_ = json.NewEncoder(h).Encode(v)
}
