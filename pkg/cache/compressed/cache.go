package compressed

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mixbaba/mixbaba/pkg/apis/cache"
)

const (
	cachePrefix  = "cc:"
	checksumSize = sha256.Size
)

// Cache gzips payloads before handing them to the wrapped cache, appending a
// checksum of the uncompressed data that is verified on read.
type Cache struct {
	Cache cache.Cache
}

func NewCompressedCache(c cache.Cache) *Cache {
	return &Cache{Cache: c}
}

func (c Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.Cache.Get(ctx, cachePrefix+key)
	if err != nil || b == nil {
		return nil, err
	}

	dataLen := len(b)
	if dataLen < checksumSize {
		return nil, errors.Errorf("invalid cache item length %d", dataLen)
	}

	var checksum [checksumSize]byte
	copy(checksum[:], b[dataLen-checksumSize:])
	return uncompress(b[:dataLen-checksumSize], checksum)
}

func (c Cache) Set(ctx context.Context, key string, content []byte, duration time.Duration) error {
	if len(content) == 0 {
		log.Warnf("not caching empty payload for key %s", key)
		return nil
	}

	data, checksum, err := compress(content)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"key":    key,
		"before": len(content),
		"after":  len(data),
	}).Debug("compressed cache entry")

	return c.Cache.Set(ctx, cachePrefix+key, append(data, checksum[:]...), duration)
}

func compress(value []byte) ([]byte, [checksumSize]byte, error) {
	var buf bytes.Buffer
	sum := sha256.Sum256(value)

	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(value); err != nil {
		return nil, sum, err
	}
	if err := zw.Close(); err != nil {
		return nil, sum, err
	}
	return buf.Bytes(), sum, nil
}

func uncompress(value []byte, expected [checksumSize]byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		return nil, err
	}

	var uncompressed bytes.Buffer
	if _, err := uncompressed.ReadFrom(zr); err != nil {
		return nil, err
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}

	if sha256.Sum256(uncompressed.Bytes()) != expected {
		return nil, errors.New("checksum validation did not match")
	}
	return uncompressed.Bytes(), nil
}
