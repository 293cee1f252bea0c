package menu

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

// ItemFetcher is the subset of gateway.Gateway used by ItemCache.
type ItemFetcher interface {
	CategoryItems(ctx context.Context, categoryID string) ([]domain.Item, error)
}

// ItemState is the load state of one category in the item cache.
type ItemState int

const (
	ItemsNotLoaded ItemState = iota
	ItemsLoading
	ItemsLoaded
)

func (s ItemState) String() string {
	switch s {
	case ItemsLoading:
		return "loading"
	case ItemsLoaded:
		return "loaded"
	default:
		return "not_loaded"
	}
}

// ItemEntry is the current knowledge about one category's items.
type ItemEntry struct {
	State ItemState
	Items []domain.Item
}

// SettleFunc is notified after every real fetch completes, successfully or not.
type SettleFunc func(categoryID string, err error)

// ItemCache lazily loads items per category. Each category has at most one outstanding fetch;
// callers arriving while it runs share its result. Loaded entries never change or expire.
type ItemCache struct {
	fetcher  ItemFetcher
	onSettle SettleFunc

	group singleflight.Group
	wg    sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*ItemEntry
}

// NewItemCache constructs an empty cache. onSettle may be nil.
func NewItemCache(fetcher ItemFetcher, onSettle SettleFunc) *ItemCache {
	return &ItemCache{
		fetcher:  fetcher,
		onSettle: onSettle,
		entries:  make(map[string]*ItemEntry),
	}
}

// Peek returns the current entry without triggering a fetch.
func (c *ItemCache) Peek(categoryID string) ItemEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(categoryID)
}

// GetItems returns the current entry and starts a background fetch when the category has not been
// loaded yet. The fetch outlives ctx cancellation; only ctx values are kept.
func (c *ItemCache) GetItems(ctx context.Context, categoryID string) ItemEntry {
	c.mu.Lock()
	entry := c.entry(categoryID)
	start := entry.State == ItemsNotLoaded
	if start {
		entry.State = ItemsLoading
	}
	current := c.snapshot(categoryID)
	c.mu.Unlock()

	if start {
		fetchCtx := context.WithoutCancel(ctx)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			<-c.load(fetchCtx, categoryID)
		}()
	}
	return current
}

// await blocks until the category's items are available, attaching to an outstanding fetch when
// there is one. Cancelling ctx stops the wait but not the fetch.
func (c *ItemCache) await(ctx context.Context, categoryID string) ([]domain.Item, error) {
	c.mu.Lock()
	entry := c.entry(categoryID)
	if entry.State == ItemsLoaded {
		items := slices.Clone(entry.Items)
		c.mu.Unlock()
		return items, nil
	}
	entry.State = ItemsLoading
	c.mu.Unlock()

	select {
	case res := <-c.load(context.WithoutCancel(ctx), categoryID):
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.Item)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FindItem searches every loaded category for the item.
func (c *ItemCache) FindItem(itemID string) (domain.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.State != ItemsLoaded {
			continue
		}
		for _, item := range entry.Items {
			if item.ID == itemID {
				return item, true
			}
		}
	}
	return domain.Item{}, false
}

// Wait blocks until every background fetch started by GetItems has settled.
func (c *ItemCache) Wait() {
	c.wg.Wait()
}

func (c *ItemCache) load(ctx context.Context, categoryID string) <-chan singleflight.Result {
	return c.group.DoChan(categoryID, func() (any, error) {
		c.mu.Lock()
		entry := c.entry(categoryID)
		if entry.State == ItemsLoaded {
			items := entry.Items
			c.mu.Unlock()
			return items, nil
		}
		entry.State = ItemsLoading
		c.mu.Unlock()

		items, err := c.fetcher.CategoryItems(ctx, categoryID)

		c.mu.Lock()
		// A caller observing the settled state must start a new flight, not join this one.
		c.group.Forget(categoryID)
		if err != nil {
			err = transient("category_items", err)
			entry.State = ItemsNotLoaded
			entry.Items = nil
		} else {
			entry.State = ItemsLoaded
			entry.Items = slices.Clone(items)
			if entry.Items == nil {
				entry.Items = []domain.Item{}
			}
			items = entry.Items
		}
		c.mu.Unlock()

		if c.onSettle != nil {
			c.onSettle(categoryID, err)
		}
		return items, err
	})
}

// entry must be called with c.mu held.
func (c *ItemCache) entry(categoryID string) *ItemEntry {
	entry, ok := c.entries[categoryID]
	if !ok {
		entry = &ItemEntry{}
		c.entries[categoryID] = entry
	}
	return entry
}

// snapshot must be called with c.mu held.
func (c *ItemCache) snapshot(categoryID string) ItemEntry {
	entry, ok := c.entries[categoryID]
	if !ok {
		return ItemEntry{State: ItemsNotLoaded}
	}
	return ItemEntry{State: entry.State, Items: slices.Clone(entry.Items)}
}
