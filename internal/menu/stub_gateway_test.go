package menu

import (
	"context"
	"errors"
	"sync"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

var errStubUnavailable = errors.New("stub: backend unavailable")

type stubGateway struct {
	mu         sync.Mutex
	pages      map[string]domain.CategoryPage
	items      map[string][]domain.Item
	restaurant domain.Restaurant

	pageCalls  int
	itemCalls  map[string]int
	pageErrs   []error
	itemErrs   map[string][]error
	pageGate   chan struct{}
	itemGate   chan struct{}
	cursorsHit []string
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		pages:      make(map[string]domain.CategoryPage),
		items:      make(map[string][]domain.Item),
		itemCalls:  make(map[string]int),
		itemErrs:   make(map[string][]error),
		restaurant: domain.Restaurant{ID: "r1", Name: "Grand M"},
	}
}

// threePages registers three pages of two categories each.
func (g *stubGateway) threePages() *stubGateway {
	g.pages["1"] = domain.CategoryPage{
		Items:      []domain.Category{{ID: "c1", Name: "Starters"}, {ID: "c2", Name: "Pizza"}},
		NextCursor: domain.Cursor("2"),
	}
	g.pages["2"] = domain.CategoryPage{
		Items:      []domain.Category{{ID: "c3", Name: "Grill"}, {ID: "c4", Name: "Salads"}},
		NextCursor: domain.Cursor("3"),
	}
	g.pages["3"] = domain.CategoryPage{
		Items: []domain.Category{{ID: "c5", Name: "Desserts"}, {ID: "c6", Name: "Drinks"}},
	}
	return g
}

// blockPages makes every following CategoryPage call wait until the returned func is called.
func (g *stubGateway) blockPages() func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := make(chan struct{})
	g.pageGate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (g *stubGateway) blockItems() func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := make(chan struct{})
	g.itemGate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (g *stubGateway) failNextPage(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pageErrs = append(g.pageErrs, err)
}

func (g *stubGateway) failNextItems(categoryID string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.itemErrs[categoryID] = append(g.itemErrs[categoryID], err)
}

func (g *stubGateway) CategoryPage(ctx context.Context, restaurantID, cursor string) (domain.CategoryPage, error) {
	g.mu.Lock()
	g.pageCalls++
	g.cursorsHit = append(g.cursorsHit, cursor)
	gate := g.pageGate
	var err error
	if len(g.pageErrs) > 0 {
		err = g.pageErrs[0]
		g.pageErrs = g.pageErrs[1:]
	}
	page, ok := g.pages[cursor]
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.CategoryPage{}, err
	}
	if !ok {
		return domain.CategoryPage{}, errStubUnavailable
	}
	return page, nil
}

func (g *stubGateway) CategoryItems(ctx context.Context, categoryID string) ([]domain.Item, error) {
	g.mu.Lock()
	g.itemCalls[categoryID]++
	gate := g.itemGate
	var err error
	if errs := g.itemErrs[categoryID]; len(errs) > 0 {
		err = errs[0]
		g.itemErrs[categoryID] = errs[1:]
	}
	items := g.items[categoryID]
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (g *stubGateway) Restaurant(ctx context.Context, restaurantID string) (domain.Restaurant, error) {
	return g.restaurant, nil
}

func (g *stubGateway) pageCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pageCalls
}

func (g *stubGateway) itemCallCount(categoryID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.itemCalls[categoryID]
}
