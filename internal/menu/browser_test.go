package menu

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

func newTestBrowser(t *testing.T, gw *stubGateway) *Browser {
	t.Helper()
	b, err := NewBrowser(BrowserDeps{
		Gateway:      gw,
		RestaurantID: "r1",
		Logger:       zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("new browser: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func startBrowser(t *testing.T, b *Browser) {
	t.Helper()
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	b.Wait()
}

func TestNewBrowserRequiresDependencies(t *testing.T) {
	if _, err := NewBrowser(BrowserDeps{RestaurantID: "r1"}); !errors.Is(err, ErrGatewayMissing) {
		t.Fatalf("expected missing gateway, got %v", err)
	}
	if _, err := NewBrowser(BrowserDeps{Gateway: newStubGateway(), RestaurantID: " "}); !errors.Is(err, ErrRestaurantRequired) {
		t.Fatalf("expected missing restaurant, got %v", err)
	}
}

func TestBrowserStartSelectsFirstCategoryAndLoadsItems(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1"}, {ID: "c2"}}}
	gw.items["c1"] = []domain.Item{{ID: "i1", Name: "Pizza", CategoryID: "c1"}}
	b := newTestBrowser(t, gw)

	startBrowser(t, b)

	snap := b.Snapshot()
	if snap.SelectedCategoryID != "c1" {
		t.Fatalf("expected c1 to be selected, got %q", snap.SelectedCategoryID)
	}
	if len(snap.ItemsForSelection) != 1 || len(snap.FilteredItems) != 1 {
		t.Fatalf("expected items of c1, got %d/%d", len(snap.ItemsForSelection), len(snap.FilteredItems))
	}
	if snap.IsLoadingItems || snap.IsFetchingNextCategoryPage {
		t.Fatalf("expected idle snapshot, got %+v", snap)
	}
	if snap.Restaurant == nil || snap.Restaurant.Name != "Grand M" {
		t.Fatalf("expected restaurant header, got %+v", snap.Restaurant)
	}
	if gw.itemCallCount("c2") != 0 {
		t.Fatalf("expected unselected categories to stay unloaded")
	}
	if err := b.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected second start to fail, got %v", err)
	}
}

func TestBrowserScrollTriggersSingleLoad(t *testing.T) {
	gw := newStubGateway().threePages()
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	release := gw.blockPages()
	signal := ScrollSignal{ScrollOffset: 485, ViewportSize: 500, ContentSize: 1000}
	if !b.OnScroll(signal) {
		t.Fatalf("expected scroll near the end to start a load")
	}
	if !b.Snapshot().IsFetchingNextCategoryPage {
		t.Fatalf("expected snapshot to report the fetch")
	}
	if b.OnScroll(signal) {
		t.Fatalf("expected identical scroll during fetch to be ignored")
	}
	if b.OnResize(ResizeSignal{ViewportSize: 1000, ContentSize: 900}) {
		t.Fatalf("expected resize during fetch to be ignored")
	}
	release()
	b.Wait()

	if got, want := gw.pageCallCount(), 2; got != want {
		t.Fatalf("expected %d page requests, got %d", want, got)
	}
	snap := b.Snapshot()
	if len(snap.Categories) != 4 || snap.PagesLoaded != 2 {
		t.Fatalf("expected 4 categories over 2 pages, got %d over %d", len(snap.Categories), snap.PagesLoaded)
	}
	if snap.SelectedCategoryID != "c1" {
		t.Fatalf("expected selection to survive paging, got %s", snap.SelectedCategoryID)
	}
}

func TestBrowserResizeWithoutOverflowLoadsOnce(t *testing.T) {
	gw := newStubGateway().threePages()
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	if !b.OnResize(ResizeSignal{ViewportSize: 1000, ContentSize: 900}) {
		t.Fatalf("expected resize without overflow to start a load")
	}
	b.Wait()
	if got, want := gw.pageCallCount(), 2; got != want {
		t.Fatalf("expected %d page requests, got %d", want, got)
	}
}

func TestBrowserStopsAtLastPage(t *testing.T) {
	gw := newStubGateway().threePages()
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	resize := ResizeSignal{ViewportSize: 1000, ContentSize: 900}
	for i := 0; i < 5; i++ {
		b.OnResize(resize)
		b.Wait()
	}
	if got, want := gw.pageCallCount(), 3; got != want {
		t.Fatalf("expected %d page requests, got %d", want, got)
	}
	if b.Snapshot().Pagination.HasNext {
		t.Fatalf("expected pagination to be exhausted")
	}
}

func TestBrowserPageFailureIsRetryable(t *testing.T) {
	gw := newStubGateway().threePages()
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	gw.failNextPage(errStubUnavailable)
	resize := ResizeSignal{ViewportSize: 1000, ContentSize: 900}
	if !b.OnResize(resize) {
		t.Fatalf("expected load to start")
	}
	b.Wait()
	snap := b.Snapshot()
	if snap.Error == "" || snap.IsFetchingNextCategoryPage || len(snap.Categories) != 2 {
		t.Fatalf("expected failed fetch to roll back, got %+v", snap)
	}

	if !b.OnResize(resize) {
		t.Fatalf("expected retry to start")
	}
	b.Wait()
	snap = b.Snapshot()
	if snap.Error != "" || len(snap.Categories) != 4 {
		t.Fatalf("expected retry to load page 2, got error %q and %d categories", snap.Error, len(snap.Categories))
	}
}

func TestBrowserLocaleSwitchRefilters(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1"}}}
	gw.items["c1"] = []domain.Item{
		{ID: "pizza", Name: "Pizza", NameAr: "بيتزا", CategoryID: "c1"},
		{ID: "tea", Name: "Tea", NameAr: "شاي", CategoryID: "c1"},
	}
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	b.SetSearchTerm("piz")
	if snap := b.Snapshot(); len(snap.FilteredItems) != 1 || snap.NoResults {
		t.Fatalf("expected pizza for english term, got %v", ids(snap.FilteredItems))
	}

	b.SetLocale(domain.LocaleArabic)
	snap := b.Snapshot()
	if len(snap.FilteredItems) != 0 || !snap.NoResults {
		t.Fatalf("expected no arabic match for latin term, got %v", ids(snap.FilteredItems))
	}
	if len(snap.ItemsForSelection) != 2 {
		t.Fatalf("expected unfiltered items to stay available, got %d", len(snap.ItemsForSelection))
	}

	b.SetSearchTerm("بيت")
	if snap := b.Snapshot(); len(snap.FilteredItems) != 1 || snap.FilteredItems[0].ID != "pizza" {
		t.Fatalf("expected pizza for arabic term, got %v", ids(snap.FilteredItems))
	}

	b.SetSearchTerm("  ")
	if snap := b.Snapshot(); len(snap.FilteredItems) != 2 {
		t.Fatalf("expected blank term to show every item, got %d", len(snap.FilteredItems))
	}
}

func TestBrowserSelectCategoryAndItems(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1"}, {ID: "c2"}}}
	gw.items["c1"] = []domain.Item{{ID: "i1", Name: "Soup", CategoryID: "c1"}}
	gw.items["c2"] = []domain.Item{{ID: "i2", Name: "Cake", CategoryID: "c2"}}
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	if err := b.SelectCategory("nope", nil); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected unknown category, got %v", err)
	}

	release := gw.blockItems()
	if err := b.SelectCategory("c2", &StripGeometry{TargetOffsetLeft: 500, TargetWidth: 100, ContainerWidth: 400}); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap := b.Snapshot()
	if !snap.IsLoadingItems || snap.SelectedCategoryID != "c2" {
		t.Fatalf("expected c2 to be loading, got %+v", snap)
	}
	if snap.ScrollTo == nil || snap.ScrollTo.Offset != 350 {
		t.Fatalf("expected scroll offset 350, got %+v", snap.ScrollTo)
	}
	release()
	b.Wait()

	if err := b.OpenItem("i2"); err != nil {
		t.Fatalf("open item: %v", err)
	}
	if err := b.SelectCategory("c1", nil); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap = b.Snapshot()
	if snap.SelectedItem == nil || snap.SelectedItem.ID != "i2" {
		t.Fatalf("expected open item to be independent of category, got %+v", snap.SelectedItem)
	}
	if gw.itemCallCount("c1") != 1 {
		t.Fatalf("expected cached c1 items to be reused, got %d fetches", gw.itemCallCount("c1"))
	}

	b.CloseItem()
	if b.Snapshot().SelectedItem != nil {
		t.Fatalf("expected item dialog to be closed")
	}
	if err := b.OpenItem("ghost"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected unknown item, got %v", err)
	}
}

func TestBrowserItemFailureReportedAndRetried(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1"}}}
	gw.items["c1"] = []domain.Item{{ID: "i1", Name: "Soup", CategoryID: "c1"}}
	gw.failNextItems("c1", errStubUnavailable)
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	snap := b.Snapshot()
	if snap.Error == "" || snap.IsLoadingItems || snap.ItemsForSelection != nil {
		t.Fatalf("expected item failure to be surfaced, got %+v", snap)
	}

	if err := b.SelectCategory("c1", nil); err != nil {
		t.Fatalf("select: %v", err)
	}
	b.Wait()
	snap = b.Snapshot()
	if snap.Error != "" || len(snap.ItemsForSelection) != 1 {
		t.Fatalf("expected retry to load items, got %+v", snap)
	}
}

func TestBrowserEmptyCategoryReportsNoResults(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "empty"}}}
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	snap := b.Snapshot()
	if !snap.NoResults || snap.Error != "" {
		t.Fatalf("expected empty result without error, got %+v", snap)
	}
}

func TestBrowserReloadFallsBackToFirstCategory(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1"}, {ID: "c2"}}}
	b := newTestBrowser(t, gw)
	startBrowser(t, b)
	if err := b.SelectCategory("c2", nil); err != nil {
		t.Fatalf("select: %v", err)
	}

	gw.mu.Lock()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c3"}, {ID: "c1"}}}
	gw.mu.Unlock()
	if err := b.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	b.Wait()

	if got := b.Snapshot().SelectedCategoryID; got != "c3" {
		t.Fatalf("expected fallback to first category c3, got %s", got)
	}
}

func TestBrowserFailedReloadKeepsCategories(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1"}, {ID: "c2"}}}
	b := newTestBrowser(t, gw)
	startBrowser(t, b)
	if err := b.SelectCategory("c2", nil); err != nil {
		t.Fatalf("select: %v", err)
	}
	b.Wait()

	gw.failNextPage(errStubUnavailable)
	if err := b.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload to fail")
	}
	b.Wait()

	snap := b.Snapshot()
	if len(snap.Categories) != 2 || snap.PagesLoaded != 1 {
		t.Fatalf("expected loaded categories to survive, got %d over %d pages", len(snap.Categories), snap.PagesLoaded)
	}
	if snap.SelectedCategoryID != "c2" {
		t.Fatalf("expected selection to be kept, got %q", snap.SelectedCategoryID)
	}
	if snap.Error == "" || snap.IsFetchingNextCategoryPage {
		t.Fatalf("expected reported error with a free slot, got %+v", snap)
	}
}

func TestBrowserSubscribeReceivesLatestSnapshot(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1"}}}
	b := newTestBrowser(t, gw)
	startBrowser(t, b)

	ch, unsubscribe := b.Subscribe()
	initial := <-ch
	b.SetSearchTerm("soup")

	select {
	case snap := <-ch:
		if snap.SearchTerm != "soup" || snap.Version <= initial.Version {
			t.Fatalf("expected newer snapshot with search term, got %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a snapshot after the search term changed")
	}

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
}

func TestBrowserAllItemsGroupsLoadedCategories(t *testing.T) {
	gw := newStubGateway()
	gw.pages["1"] = domain.CategoryPage{Items: []domain.Category{{ID: "c1", Name: "Soups"}, {ID: "c2", Name: "Cakes"}}}
	gw.items["c1"] = []domain.Item{{ID: "i1", Name: "Lentil soup", CategoryID: "c1"}}
	gw.items["c2"] = []domain.Item{{ID: "i2", Name: "Cheesecake", CategoryID: "c2"}}
	b := newTestBrowser(t, gw)
	startBrowser(t, b)
	if err := b.SelectCategory("c2", nil); err != nil {
		t.Fatalf("select: %v", err)
	}
	b.Wait()

	groups := b.AllItems()
	if len(groups) != 2 || groups[0].Category.ID != "c1" {
		t.Fatalf("expected two groups in category order, got %+v", groups)
	}
	b.SetSearchTerm("cake")
	if groups := b.AllItems(); len(groups) != 1 || groups[0].Category.ID != "c2" {
		t.Fatalf("expected only cakes to match, got %+v", groups)
	}
}
