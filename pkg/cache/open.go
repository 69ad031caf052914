package cache

import (
	"context"
	"fmt"
	"strings"
)

// Open returns the cache named by backend:
//
//	""  or "file"            FileCache in DefaultDir
//	"file:<dir>"             FileCache in dir
//	"none"                   NullCache
//	"redis://..."            RedisCache
//	"rediss://..."           RedisCache over TLS
//	"mongodb://..."          MongoCache
//	"mongodb+srv://..."      MongoCache
func Open(ctx context.Context, backend string) (Cache, error) {
	switch {
	case backend == "" || backend == "file":
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		return NewFileCache(dir)
	case strings.HasPrefix(backend, "file:"):
		return NewFileCache(strings.TrimPrefix(backend, "file:"))
	case backend == "none":
		return NewNullCache(), nil
	case strings.HasPrefix(backend, "redis://"), strings.HasPrefix(backend, "rediss://"):
		return NewRedisCache(ctx, RedisOptions{URL: backend, Prefix: "metalroute:"})
	case strings.HasPrefix(backend, "mongodb://"), strings.HasPrefix(backend, "mongodb+srv://"):
		return NewMongoCache(ctx, MongoOptions{URI: backend})
	}
	return nil, fmt.Errorf("%w: unknown cache backend %q", ErrConfig, backend)
}
