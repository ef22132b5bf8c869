package flags

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mixbaba/mixbaba/pkg/apis/cache"
	"github.com/mixbaba/mixbaba/pkg/cache/compressed"
	"github.com/mixbaba/mixbaba/pkg/cache/redis"
	"github.com/mixbaba/mixbaba/pkg/mixpanel"
)

// CacheFlags holds caching configuration for Mixpanel responses.
type CacheFlags struct {
	RedisURL string
	TTL      time.Duration
}

func NewCacheFlags() *CacheFlags {
	return &CacheFlags{
		TTL: mixpanel.DefaultCacheTTL,
	}
}

func (f *CacheFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.RedisURL,
		"redis-url",
		os.Getenv("REDIS_URL"),
		"Redis URL for caching Mixpanel responses")
	fs.DurationVar(&f.TTL, "cache-ttl", f.TTL, "How long Mixpanel responses are cached")
}

func (f *CacheFlags) Validate() error {
	if f.RedisURL != "" && f.TTL <= 0 {
		return errors.New("--cache-ttl must be positive when caching is enabled")
	}
	return nil
}

// GetCacheClient returns a compressed redis cache, or nil when no redis URL is set.
func (f *CacheFlags) GetCacheClient() (cache.Cache, error) {
	if f.RedisURL == "" {
		return nil, nil
	}

	redisCache, err := redis.NewRedisCache(f.RedisURL)
	if err != nil {
		return nil, err
	}
	return compressed.NewCompressedCache(redisCache), nil
}
