// Package cache stores routing results keyed by the content of the job that
// produced them.
//
// Routing the same job with the same options is deterministic, so the
// pipeline hashes the job file and the effective options and looks the
// resolution up before routing. Backends implement [Cache]:
//
//   - [FileCache]: one JSON file per entry under the user cache directory
//   - [RedisCache]: a shared Redis instance (github.com/redis/go-redis/v9)
//   - [MongoCache]: a MongoDB collection with a TTL index
//   - [NullCache]: caching disabled
//
// Keys are produced by a [Keyer]; [ScopedKeyer] adds a namespace prefix so
// several users of one backend do not collide.
package cache

import (
	"context"
	"time"
)

// Entry lifetimes.
const (
	TTLResolution = 7 * 24 * time.Hour
	TTLArtifact   = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// ResolutionKey identifies the routing result of a job under a set of
	// options. opts must be JSON-encodable.
	ResolutionKey(jobHash string, opts any) string
	// ArtifactKey identifies a rendered global-routing plan.
	ArtifactKey(jobHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts holds the parameters that change a rendered plan.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	Passes int    `json:"passes"`
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ResolutionKey implements [Keyer].
func (DefaultKeyer) ResolutionKey(jobHash string, opts any) string {
	return hashKey("resolution", jobHash, opts)
}

// ArtifactKey implements [Keyer].
func (DefaultKeyer) ArtifactKey(jobHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", jobHash, opts)
}
