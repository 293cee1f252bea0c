package menu

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
	"github.com/IqDevHose/grandm-qrcode/internal/gateway"
)

var (
	// ErrGatewayMissing indicates the browser was built without a fetch gateway.
	ErrGatewayMissing = errors.New("menu: gateway is not configured")
	// ErrRestaurantRequired indicates the browser was built without a restaurant id.
	ErrRestaurantRequired = errors.New("menu: restaurant id is required")
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("menu: browser already started")
)

// BrowserDeps configures a Browser.
type BrowserDeps struct {
	Gateway      gateway.Gateway
	RestaurantID string
	Locale       domain.Locale
	FirstCursor  string
	// NearEndThreshold defaults to DefaultNearEndThreshold.
	NearEndThreshold float64
	MatchMode        MatchMode
	Logger           *zap.Logger
}

// Browser is one menu-browsing session. It wires the page store, item cache, loader, filter and
// selection together, accepts presentation events and publishes a Snapshot after every change.
// All methods are safe for concurrent use.
type Browser struct {
	gateway      gateway.Gateway
	restaurantID string
	threshold    float64
	mode         MatchMode
	logger       *zap.Logger

	pages *PageStore
	items *ItemCache
	wg    sync.WaitGroup

	mu          sync.Mutex
	baseCtx     context.Context
	started     bool
	closed      bool
	restaurant  *domain.Restaurant
	selection   Selection
	searchTerm  string
	locale      domain.Locale
	lastErr     string
	version     uint64
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// NewBrowser constructs a Browser. Call Start to load the first page.
func NewBrowser(deps BrowserDeps) (*Browser, error) {
	if deps.Gateway == nil {
		return nil, ErrGatewayMissing
	}
	restaurantID := strings.TrimSpace(deps.RestaurantID)
	if restaurantID == "" {
		return nil, ErrRestaurantRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locale := deps.Locale
	if locale == "" {
		locale = domain.LocaleEnglish
	}
	threshold := deps.NearEndThreshold
	if threshold <= 0 {
		threshold = DefaultNearEndThreshold
	}

	b := &Browser{
		gateway:      deps.Gateway,
		restaurantID: restaurantID,
		threshold:    threshold,
		mode:         deps.MatchMode,
		logger:       logger.With(zap.String("restaurant_id", restaurantID)),
		baseCtx:      context.Background(),
		locale:       locale,
		subscribers:  make(map[int]chan Snapshot),
	}
	b.pages = NewPageStore(restaurantID, deps.Gateway, deps.FirstCursor)
	b.items = NewItemCache(deps.Gateway, b.onItemsSettled)
	return b, nil
}

// Start fetches the restaurant header in the background and the first category page synchronously.
// A failed first page is reported but leaves the browser usable; a later scroll, resize or Reload
// retries it.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.baseCtx = context.WithoutCancel(ctx)
	base := b.baseCtx
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.loadRestaurant(base)
	}()

	return b.loadFirstPage(base)
}

// Reload fetches the first page again and, on success, replaces the loaded category pages with it.
// The selection is kept when the category still exists and falls back to the first category
// otherwise. A failed reload keeps the loaded pages and selection and only reports the error.
// Cached items are kept.
func (b *Browser) Reload(ctx context.Context) error {
	ticket := b.pages.ReserveReload()
	b.mu.Lock()
	b.emitLocked()
	b.mu.Unlock()

	page, err := b.pages.Fetch(context.WithoutCancel(ctx), ticket)
	outcome := OutcomeLoaded
	if err != nil {
		outcome = OutcomeFailed
	}
	b.applyPage(page, outcome, err)
	if outcome == OutcomeFailed && !errors.Is(err, ErrPageDiscarded) {
		return err
	}
	return nil
}

func (b *Browser) loadFirstPage(ctx context.Context) error {
	page, outcome, err := b.pages.LoadNextPage(ctx)
	b.applyPage(page, outcome, err)
	if outcome == OutcomeFailed {
		return err
	}
	return nil
}

// SelectCategory selects a loaded category, starts loading its items and requests the strip to
// scroll it into view. geometry may be nil.
func (b *Browser) SelectCategory(id string, geometry *StripGeometry) error {
	id = strings.TrimSpace(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.selection.Select(b.pages.Categories(), id, geometry); err != nil {
		return err
	}
	b.items.GetItems(b.baseCtx, id)
	b.emitLocked()
	return nil
}

// OpenItem opens the detail dialog for a loaded item.
func (b *Browser) OpenItem(id string) error {
	id = strings.TrimSpace(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.items.FindItem(id)
	if !ok {
		return ErrUnknownItem
	}
	b.selection.OpenItem(item)
	b.emitLocked()
	return nil
}

// CloseItem closes the detail dialog.
func (b *Browser) CloseItem() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection.CloseItem()
	b.emitLocked()
}

// SetSearchTerm updates the search term. Filtering is applied when the snapshot is built.
func (b *Browser) SetSearchTerm(term string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.searchTerm = term
	b.emitLocked()
}

// SetLocale switches the display locale; the active search term is matched against the new
// locale's fields.
func (b *Browser) SetLocale(locale domain.Locale) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if locale == "" || locale == b.locale {
		return
	}
	b.locale = locale
	b.emitLocked()
}

// Locale returns the session's display locale.
func (b *Browser) Locale() domain.Locale {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locale
}

// OnScroll evaluates a scroll of the category strip and reports whether a page load was started.
func (b *Browser) OnScroll(signal ScrollSignal) bool {
	return b.maybeLoadMore(signal)
}

// OnResize evaluates a layout change of the category strip and reports whether a page load was
// started.
func (b *Browser) OnResize(signal ResizeSignal) bool {
	return b.maybeLoadMore(signal)
}

func (b *Browser) maybeLoadMore(signal Signal) bool {
	if !ShouldLoadMore(signal, b.pages.Status(), b.threshold) {
		return false
	}
	ticket, outcome := b.pages.Reserve()
	if outcome != OutcomeStarted {
		return false
	}

	b.mu.Lock()
	ctx := b.baseCtx
	b.emitLocked()
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		page, err := b.pages.Fetch(ctx, ticket)
		outcome := OutcomeLoaded
		if err != nil {
			outcome = OutcomeFailed
		}
		b.applyPage(page, outcome, err)
	}()
	return true
}

func (b *Browser) applyPage(page domain.CategoryPage, outcome LoadOutcome, err error) {
	if errors.Is(err, ErrPageDiscarded) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch outcome {
	case OutcomeFailed:
		b.lastErr = err.Error()
		b.logger.Warn("category page failed", zap.Error(err))
	case OutcomeLoaded:
		b.lastErr = ""
		b.logger.Info("category page loaded",
			zap.Int("categories", len(page.Items)),
			zap.Bool("has_next", page.HasNext()),
		)
		if id, changed := b.selection.Reconcile(b.pages.Categories()); changed {
			b.logger.Debug("category selected by default", zap.String("category_id", id))
			b.items.GetItems(b.baseCtx, id)
		}
	default:
		return
	}
	b.emitLocked()
}

func (b *Browser) loadRestaurant(ctx context.Context) {
	r, err := b.gateway.Restaurant(ctx, b.restaurantID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.lastErr = err.Error()
		b.logger.Warn("restaurant fetch failed", zap.Error(err))
	} else {
		b.restaurant = &r
	}
	b.emitLocked()
}

func (b *Browser) onItemsSettled(categoryID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.lastErr = err.Error()
		b.logger.Warn("category items failed", zap.String("category_id", categoryID), zap.Error(err))
	} else if categoryID == b.selection.CategoryID() {
		b.lastErr = ""
	}
	b.emitLocked()
}

// Snapshot returns the current state.
func (b *Browser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Browser) snapshotLocked() Snapshot {
	state := b.pages.State()
	snap := Snapshot{
		Version:                    b.version,
		RestaurantID:               b.restaurantID,
		Categories:                 b.pages.Categories(),
		Pagination:                 state.Status(),
		PagesLoaded:                len(state.Pages),
		SelectedCategoryID:         b.selection.CategoryID(),
		IsFetchingNextCategoryPage: state.InFlight,
		SearchTerm:                 b.searchTerm,
		Locale:                     b.locale,
		ScrollTo:                   b.selection.ScrollRequest(),
		Error:                      b.lastErr,
	}
	if b.restaurant != nil {
		r := *b.restaurant
		snap.Restaurant = &r
	}
	if item, ok := b.selection.Item(); ok {
		snap.SelectedItem = &item
	}
	if snap.SelectedCategoryID != "" {
		entry := b.items.Peek(snap.SelectedCategoryID)
		snap.IsLoadingItems = entry.State == ItemsLoading
		if entry.State == ItemsLoaded {
			snap.ItemsForSelection = entry.Items
			snap.FilteredItems = slices.Clone(FilterWithMode(entry.Items, b.searchTerm, b.locale, b.mode))
			snap.NoResults = len(snap.FilteredItems) == 0
		}
	}
	return snap
}

// AllItems returns every loaded item matching the current search term, grouped by category.
func (b *Browser) AllItems() []CategoryGroup {
	b.mu.Lock()
	defer b.mu.Unlock()
	categories := b.pages.Categories()
	var items []domain.Item
	for _, c := range categories {
		entry := b.items.Peek(c.ID)
		if entry.State == ItemsLoaded {
			items = append(items, entry.Items...)
		}
	}
	return GroupByCategory(categories, FilterWithMode(items, b.searchTerm, b.locale, b.mode))
}

// Subscribe returns a channel receiving the latest snapshot after every change, starting with the
// current one. Slow readers only see the most recent snapshot. The returned func unsubscribes and
// closes the channel.
func (b *Browser) Subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = ch
	ch <- b.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}
}

// emitLocked bumps the version and delivers the new snapshot to subscribers without blocking.
func (b *Browser) emitLocked() {
	b.version++
	if len(b.subscribers) == 0 {
		return
	}
	snap := b.snapshotLocked()
	for _, ch := range b.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Wait blocks until background fetches started so far have settled.
func (b *Browser) Wait() {
	b.wg.Wait()
	b.items.Wait()
}

// Close releases subscribers. Outstanding fetches finish in the background and are discarded with
// the browser.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
