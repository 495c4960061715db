package index

import (
	"sync"

	"github.com/harrisonrobin/timebox/pkg/kvcache"
)

// EventIndex remembers which remote event was written for a local owner key
// (see OwnerKey), so pushes can find their event without a search request.
type EventIndex struct {
	Mappings map[string]string `json:"mappings"`
	store    *kvcache.Cache
	mu       sync.RWMutex
	dirty    bool
}

func NewEventIndex(store *kvcache.Cache) *EventIndex {
	idx := &EventIndex{
		Mappings: make(map[string]string),
		store:    store,
	}
	if store != nil {
		store.Get(kvcache.KeyEventIndex, &idx.Mappings)
		if idx.Mappings == nil {
			idx.Mappings = make(map[string]string)
		}
	}
	return idx
}

func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty || idx.store == nil {
		return nil
	}
	if err := idx.store.Put(kvcache.KeyEventIndex, idx.Mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(ownerKey string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[ownerKey]
}

func (idx *EventIndex) Set(ownerKey, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[ownerKey] != eventID {
		idx.Mappings[ownerKey] = eventID
		idx.dirty = true
	}
}

// Remove drops the mapping for ownerKey.
func (idx *EventIndex) Remove(ownerKey string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Mappings[ownerKey]; exists {
		delete(idx.Mappings, ownerKey)
		idx.dirty = true
	}
}

// RemoveEvent drops every mapping that points at eventID.
func (idx *EventIndex) RemoveEvent(eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for k, v := range idx.Mappings {
		if v == eventID {
			delete(idx.Mappings, k)
			idx.dirty = true
		}
	}
}
