package handler

import "encoding/json"

// CacheWriteRequest is the body of PUT and POST /api/cache/{key}.
type CacheWriteRequest struct {
	Value json.RawMessage `json:"value"`
	// ExpiresIn is a Go duration such as "90s" or "1h". Empty means never.
	ExpiresIn string `json:"expiresIn,omitempty"`
}

// CacheEntryDTO is the JSON representation of a cache entry.
type CacheEntryDTO struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// TidyDTO is the JSON response of POST /api/cache/tidy.
type TidyDTO struct {
	Removed int64 `json:"removed"`
}

func toCacheEntryDTO(key string, value json.RawMessage) CacheEntryDTO {
	return CacheEntryDTO{Key: key, Value: value}
}
