package colors

import (
	"strconv"
	"sync"
	"time"

	"github.com/harrisonrobin/timebox/pkg/kvcache"
)

const (
	// DefaultColorID is used for untagged entries (Google "graphite").
	DefaultColorID = "8"
	// paletteSize is the number of event colours the calendar offers.
	paletteSize = 11
)

type TagState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// Cache assigns a stable calendar colour to every tag, recycling the least
// recently used colour once the palette is exhausted.
type Cache struct {
	store *kvcache.Cache
	mu    sync.Mutex
	Tags  map[string]*TagState
	dirty bool
	now   func() time.Time
}

func NewCache(store *kvcache.Cache) *Cache {
	c := &Cache{
		store: store,
		Tags:  make(map[string]*TagState),
		now:   time.Now,
	}
	if store != nil {
		store.Get(kvcache.KeyTagColors, &c.Tags)
		if c.Tags == nil {
			c.Tags = make(map[string]*TagState)
		}
	}
	return c
}

func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || c.store == nil {
		return nil
	}
	if err := c.store.Put(kvcache.KeyTagColors, c.Tags); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the colour for tag, assigning one if needed.
func (c *Cache) ColorID(tag string) string {
	if tag == "" {
		return DefaultColorID
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Tags[tag]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(tag)
}

func (c *Cache) assign(tag string) string {
	used := make(map[string]bool)
	for _, s := range c.Tags {
		used[s.ColorID] = true
	}
	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.Tags[tag] = &TagState{ColorID: id, LastUsed: c.now()}
			c.dirty = true
			return id
		}
	}

	// Palette full: evict the least recently used tag.
	var oldest string
	var oldestTime time.Time
	for t, s := range c.Tags {
		if oldest == "" || s.LastUsed.Before(oldestTime) {
			oldest, oldestTime = t, s.LastUsed
		}
	}
	recycled := c.Tags[oldest].ColorID
	delete(c.Tags, oldest)
	c.Tags[tag] = &TagState{ColorID: recycled, LastUsed: c.now()}
	c.dirty = true
	return recycled
}
