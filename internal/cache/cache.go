// Package cache holds connector results between requests.
// The evaluation core never reads it; only connectors do.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
)

// HitCache stores connector hits by key
type HitCache interface {
	Get(key string) ([]model.RawHit, bool)
	Set(key string, hits []model.RawHit, ttl time.Duration)
	Delete(key string)
	Clear()
}

// Key derives a cache key from a connector name and query
func Key(connector, query string) string {
	hash := sha256.Sum256([]byte(connector + "\x00" + query))
	return "truthgate:v1:" + hex.EncodeToString(hash[:])
}
