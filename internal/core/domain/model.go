package domain

import "time"

// ResponseSchema is a JSON Schema descriptor of the expected model output.
type ResponseSchema map[string]any

type ModelParams struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRequest struct {
	Operation string
	Prompt    string
	Schema    ResponseSchema
	Params    ModelParams
}

type CacheEntry struct {
	Key       string        `json:"key"`
	Payload   string        `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Fresh reports whether the entry is still a cache hit at now.
func (e CacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.CreatedAt) < e.TTL
}

type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Writes  int64 `json:"writes"`
	Pruned  int64 `json:"pruned"`
}
