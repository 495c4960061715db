package colors

import (
	"strconv"
	"testing"
	"time"

	"github.com/harrisonrobin/timebox/pkg/kvcache"
)

func TestColorIDStable(t *testing.T) {
	c := NewCache(nil)
	first := c.ColorID("work")
	if first != "1" {
		t.Fatalf("first tag should get colour 1, got %s", first)
	}
	if again := c.ColorID("work"); again != first {
		t.Errorf("colour changed: %s -> %s", first, again)
	}
	if c.ColorID("") != DefaultColorID {
		t.Error("untagged entries should use the default colour")
	}
}

func TestColorIDEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(nil)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for i := 0; i < paletteSize; i++ {
		c.ColorID("tag" + strconv.Itoa(i))
	}
	// Touch tag0 so tag1 becomes the oldest.
	c.ColorID("tag0")
	tag1 := c.Tags["tag1"].ColorID

	got := c.ColorID("fresh")
	if got != tag1 {
		t.Errorf("expected recycled colour %s, got %s", tag1, got)
	}
	if _, ok := c.Tags["tag1"]; ok {
		t.Error("tag1 should have been evicted")
	}
}

func TestSavePersists(t *testing.T) {
	store := kvcache.Open(t.TempDir())
	c := NewCache(store)
	id := c.ColorID("health")
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := NewCache(store)
	if reloaded.Tags["health"] == nil || reloaded.Tags["health"].ColorID != id {
		t.Errorf("colour not persisted: %+v", reloaded.Tags)
	}
}
