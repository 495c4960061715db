// Package kvcache is the local durable key -> JSON blob store used to render
// instantly on cold start.
package kvcache

import (
	"encoding/json"
	"fmt"

	"github.com/peterbourgon/diskv/v3"

	"github.com/harrisonrobin/timebox/pkg/logger"
)

// Fixed keys.
const (
	KeyCalendarCache     = "calendar-cache"
	KeyCalendarRefreshed = "calendar-refreshed"
	KeyHabits            = "habits"
	KeyWeightEntries     = "weight-entries"
	KeyUserTags          = "user-tags"
	KeySelectedDate      = "selected-date"
	KeyZoomState         = "zoom-state"
	KeyTagColors         = "tag-colors"
	KeyEventIndex        = "event-index"
)

// Cache is a flat diskv store. Every value is a JSON document.
type Cache struct {
	d *diskv.Diskv
}

// Open creates (or reopens) a cache rooted at basePath.
func Open(basePath string) *Cache {
	return &Cache{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 1024 * 1024, // 1MB
	})}
}

// Get decodes the value under key into v. A missing or malformed value leaves
// v at its zero value and returns false; malformed blobs are logged, never fatal.
func (c *Cache) Get(key string, v interface{}) bool {
	if !c.d.Has(key) {
		return false
	}
	b, err := c.d.Read(key)
	if err != nil {
		logger.Warn("Could not read cache entry", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		logger.Warn("Discarding malformed cache entry", "key", key, "error", err)
		return false
	}
	return true
}

// Put stores v under key.
func (c *Cache) Put(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	if err := c.d.Write(key, b); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	if !c.d.Has(key) {
		return nil
	}
	return c.d.Erase(key)
}
