package cache

import (
	"encoding/hex"
	"encoding/json"

	"github.com/minio/highwayhash"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

var hashKey = []byte("docintel-response-cache-key-v1.0")

// Key derives the cache key for a prompt and its response schema. The schema
// is serialized by encoding/json, which sorts map keys, so logically equal
// schemas hash the same.
func Key(prompt string, schema domain.ResponseSchema) string {
	h, err := highwayhash.New(hashKey)
	if err != nil {
		// hashKey is a fixed 32-byte constant.
		panic(err)
	}
	_, _ = h.Write([]byte(prompt))
	_, _ = h.Write([]byte{0})
	if schema != nil {
		encoded, err := json.Marshal(schema)
		if err == nil {
			_, _ = h.Write(encoded)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
