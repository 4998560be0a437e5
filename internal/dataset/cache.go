package dataset

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/flood-impact-engine/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Provider loads a dataset for a city. *Loader implements it.
type Provider interface {
	LoadOrSynthesize(ctx context.Context, city string) (Loaded, error)
}

// Entry describes one cached dataset.
type Entry struct {
	City      string    `json:"city"`
	DatasetID string    `json:"dataset_id"`
	Source    Source    `json:"source"`
	Buildings int       `json:"buildings"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Cache is a thread-safe LRU of loaded datasets with a time-to-live. Failed
// loads are never cached, and concurrent misses for one city share a load.
type Cache struct {
	provider   Provider
	clock      clockwork.Clock
	ttl        time.Duration
	maxEntries int
	metrics    *observability.Metrics
	group      singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key      string
	value    Loaded
	loadedAt time.Time
	prev     *entry
	next     *entry
}

// NewCache wraps provider with an LRU bounded to maxEntries whose entries
// expire ttl after loading.
func NewCache(provider Provider, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cache {
	return &Cache{
		provider:   provider,
		clock:      clock,
		ttl:        ttl,
		maxEntries: maxEntries,
		metrics:    metrics,
		entries:    make(map[string]*entry),
	}
}

// Get returns the cached dataset for city, loading it on a miss or after
// expiry.
func (c *Cache) Get(ctx context.Context, city string) (Loaded, error) {
	key, err := NormalizeCity(city)
	if err != nil {
		return Loaded{}, err
	}

	if v, ok := c.get(key); ok {
		c.metrics.DatasetCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	c.metrics.DatasetCache.WithLabelValues("miss").Inc()

	// The load is shared, so one caller giving up must not fail the others.
	v, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := c.provider.LoadOrSynthesize(context.WithoutCancel(ctx), key)
		if err != nil {
			return Loaded{}, err
		}
		c.put(key, loaded)
		return loaded, nil
	})
	if err != nil {
		return Loaded{}, err
	}
	return v.(Loaded), nil
}

// Invalidate drops city from the cache so the next Get reloads it.
func (c *Cache) Invalidate(city string) {
	key, err := NormalizeCity(city)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.drop(e)
	}
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries lists cached datasets sorted by city, skipping expired ones.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if c.expired(e, now) {
			continue
		}
		out = append(out, Entry{
			City:      e.key,
			DatasetID: e.value.Dataset.ID(),
			Source:    e.value.Source,
			Buildings: e.value.Dataset.Len(),
			LoadedAt:  e.loadedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}

func (c *Cache) get(key string) (Loaded, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Loaded{}, false
	}
	if c.expired(e, c.clock.Now()) {
		c.drop(e)
		return Loaded{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *Cache) put(key string, value Loaded) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.metrics.CachedDatasets.Set(float64(len(c.entries))) }()

	now := c.clock.Now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.loadedAt = now
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, loadedAt: now}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.drop(c.tail)
	}
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.loadedAt) >= c.ttl
}

func (c *Cache) drop(e *entry) {
	if e == nil {
		return
	}
	delete(c.entries, e.key)
	c.remove(e)
	c.metrics.CachedDatasets.Set(float64(len(c.entries)))
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
