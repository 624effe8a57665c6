// Package directory caches the full catalog of tradable instruments,
// fetched once per session from the stocks endpoint and keyed by symbol.
package directory

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"tradewatch/internal/api"
	"tradewatch/internal/model"
	"tradewatch/internal/pubsub"
)

// Snapshot is the immutable view published to subscribers. Instruments is
// replaced wholesale on every successful load; Err reflects the most
// recent fetch outcome and may be non-nil while stale data remains
// available.
type Snapshot struct {
	Instruments []model.Instrument
	Loaded      bool
	Err         error
}

// Cache is the instrument catalog cache.
type Cache struct {
	client *api.Client
	log    *slog.Logger
	bus    *pubsub.Broadcaster[Snapshot]

	mu       sync.RWMutex
	data     map[string]model.Instrument
	order    []string // symbols in first-seen fetch order, for stable listings
	loaded   bool
	stale    bool
	loading  bool
	inflight chan struct{} // closed when the in-flight fetch settles
	err      error
}

// NewCache creates an empty directory cache.
func NewCache(client *api.Client, log *slog.Logger) *Cache {
	return &Cache{
		client: client,
		log:    log,
		bus:    pubsub.New[Snapshot](),
	}
}

// Load fetches the catalog unless it is already loaded and not
// invalidated. On success the whole map is replaced; symbols are
// upper-cased and duplicates collapse last-wins. On failure the error is
// recorded and previously loaded data is left untouched. When another
// Load is already in flight, the call blocks until that fetch settles
// and returns its outcome.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.loaded && !c.stale {
		c.mu.Unlock()
		return nil
	}
	if c.loading {
		done := c.inflight
		c.mu.Unlock()
		select {
		case <-done:
			return c.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.loading = true
	c.inflight = make(chan struct{})
	done := c.inflight
	c.mu.Unlock()

	stocks, err := c.client.GetStocks(ctx)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.err = err
		snap := c.snapshotLocked()
		c.mu.Unlock()
		close(done)

		c.log.Error("directory fetch failed", "err", err)
		c.bus.Publish(snap)
		return err
	}

	data := make(map[string]model.Instrument, len(stocks))
	order := make([]string, 0, len(stocks))
	for _, inst := range stocks {
		inst.Symbol = strings.ToUpper(inst.Symbol)
		if _, dup := data[inst.Symbol]; !dup {
			order = append(order, inst.Symbol)
		}
		data[inst.Symbol] = inst
	}
	c.data = data
	c.order = order
	c.loaded = true
	c.stale = false
	c.err = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	close(done)

	c.log.Info("directory loaded", "instruments", len(data))
	c.bus.Publish(snap)
	return nil
}

// Invalidate marks the cache stale so the next Load refetches. Existing
// data stays readable until then.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Get returns the instrument for a symbol (case-insensitive lookup).
func (c *Cache) Get(symbol string) (model.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.data[strings.ToUpper(symbol)]
	return inst, ok
}

// All returns a copy of the catalog in fetch order.
func (c *Cache) All() []model.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listLocked()
}

// Len returns the number of cached instruments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Loaded reports whether a fetch has ever succeeded.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Err returns the most recent fetch error, if any.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Snapshot returns the current immutable view.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe returns a snapshot stream and a cancel function.
func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	return c.bus.Subscribe(4)
}

func (c *Cache) snapshotLocked() Snapshot {
	return Snapshot{
		Instruments: c.listLocked(),
		Loaded:      c.loaded,
		Err:         c.err,
	}
}

func (c *Cache) listLocked() []model.Instrument {
	out := make([]model.Instrument, 0, len(c.data))
	for _, sym := range c.order {
		out = append(out, c.data[sym])
	}
	return out
}
