package server

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/die-net/lrucache"
)

// resultCache keeps encoded cutouts keyed by the md5 of their source.
type resultCache struct {
	lru *lrucache.LruCache
}

func newResultCache(maxBytes int64, ttl time.Duration) *resultCache {
	if maxBytes <= 0 {
		return nil
	}
	return &resultCache{lru: lrucache.New(maxBytes, int64(ttl.Seconds()))}
}

func (c *resultCache) get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *resultCache) set(key string, data []byte) {
	if c == nil {
		return
	}
	c.lru.Set(key, data)
}

func (c *resultCache) size() int64 {
	if c == nil {
		return 0
	}
	return c.lru.Size()
}

// bytesMD5 returns the hex md5 of data.
func bytesMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
