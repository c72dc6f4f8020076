package cache

import (
	"strings"
	"time"

	"boletim/internal/core"
)

// RecordCache holds provider records by date. Records are cloned on the way
// in and out so callers may mutate what they get.
type RecordCache struct {
	lru *LRU[string, *core.Record]
}

func NewRecordCache(maxSize int, ttl time.Duration) *RecordCache {
	return &RecordCache{lru: NewLRU[string, *core.Record](maxSize, ttl)}
}

func (c *RecordCache) Get(date core.Date) (*core.Record, bool) {
	rec, ok := c.lru.Get(date.ISO())
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (c *RecordCache) Put(date core.Date, rec *core.Record) {
	c.lru.Put(date.ISO(), rec.Clone())
}

// InvalidateFrom drops date and every later cached day of the same month,
// whose month-to-date figures include date's.
func (c *RecordCache) InvalidateFrom(date core.Date) int {
	from := date.ISO()
	month := from[:len("2006-01")]
	return c.lru.RemoveIf(func(key string) bool {
		return strings.HasPrefix(key, month) && key >= from
	})
}

func (c *RecordCache) Sweep() int { return c.lru.Sweep() }

func (c *RecordCache) Len() int { return c.lru.Len() }
