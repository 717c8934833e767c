package cache

import (
	"context"
	"fmt"

	"github.com/Norgate-AV/pcs/internal/config"
)

// NewStore creates the backing store selected by cfg.Backend
func NewStore(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case config.CacheBackendBolt, "":
		return NewBoltStore(cfg.Path)
	case config.CacheBackendMemory:
		return NewMemoryStore(), nil
	case config.CacheBackendNATS:
		return NewNATSStore(ctx, cfg.NATSURL, cfg.NATSBucket)
	case config.CacheBackendRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case config.CacheBackendS3:
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
