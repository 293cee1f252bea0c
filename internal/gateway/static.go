package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

const defaultStaticPageSize = 4

// StaticGateway serves a fixed in-memory menu. It is used for local development when no backend is
// configured and as a deterministic fake in tests. Cursors are 1-based page numbers.
type StaticGateway struct {
	PageSize int

	mu          sync.RWMutex
	restaurants map[string]domain.Restaurant
	categories  map[string][]domain.Category
	items       map[string][]domain.Item
}

// NewStaticGateway constructs an empty StaticGateway.
func NewStaticGateway(pageSize int) *StaticGateway {
	if pageSize <= 0 {
		pageSize = defaultStaticPageSize
	}
	return &StaticGateway{
		PageSize:    pageSize,
		restaurants: make(map[string]domain.Restaurant),
		categories:  make(map[string][]domain.Category),
		items:       make(map[string][]domain.Item),
	}
}

// AddRestaurant registers a restaurant with its categories in display order.
func (g *StaticGateway) AddRestaurant(r domain.Restaurant, categories ...domain.Category) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restaurants[r.ID] = r
	g.categories[r.ID] = append([]domain.Category(nil), categories...)
}

// AddItems registers the items of a category.
func (g *StaticGateway) AddItems(categoryID string, items ...domain.Item) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, item := range items {
		if item.CategoryID == "" {
			item.CategoryID = categoryID
		}
		g.items[categoryID] = append(g.items[categoryID], item)
	}
}

// CategoryPage returns the requested page of categories.
func (g *StaticGateway) CategoryPage(ctx context.Context, restaurantID, cursor string) (domain.CategoryPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.CategoryPage{}, fetchError(opCategoryPage, 0, err)
	}
	page, err := strconv.Atoi(strings.TrimSpace(cursor))
	if err != nil || page < 1 {
		return domain.CategoryPage{}, fetchError(opCategoryPage, 400, fmt.Errorf("invalid page %q", cursor))
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	all, ok := g.categories[restaurantID]
	if !ok {
		return domain.CategoryPage{}, fetchError(opCategoryPage, 404, fmt.Errorf("restaurant %q not found", restaurantID))
	}

	start := (page - 1) * g.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + g.PageSize
	if end > len(all) {
		end = len(all)
	}
	result := domain.CategoryPage{Items: append([]domain.Category(nil), all[start:end]...)}
	if end < len(all) {
		result.NextCursor = domain.Cursor(strconv.Itoa(page + 1))
	}
	return result, nil
}

// CategoryItems returns the registered items of a category. Unknown categories have no items.
func (g *StaticGateway) CategoryItems(ctx context.Context, categoryID string) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetchError(opCategoryItems, 0, err)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]domain.Item(nil), g.items[categoryID]...), nil
}

// Restaurant returns the registered restaurant header.
func (g *StaticGateway) Restaurant(ctx context.Context, restaurantID string) (domain.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Restaurant{}, fetchError(opRestaurant, 0, err)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.restaurants[restaurantID]
	if !ok {
		return domain.Restaurant{}, fetchError(opRestaurant, 404, fmt.Errorf("restaurant %q not found", restaurantID))
	}
	return r, nil
}

// DemoRestaurantID identifies the restaurant seeded by NewDemoGateway.
const DemoRestaurantID = "demo"

// NewDemoGateway returns a StaticGateway seeded with a small bilingual menu.
func NewDemoGateway() *StaticGateway {
	g := NewStaticGateway(2)
	g.AddRestaurant(domain.Restaurant{
		ID:    DemoRestaurantID,
		Name:  "Grand M",
		Theme: domain.Theme{Primary: "#b45309"},
	},
		domain.Category{ID: "starters", Name: "Starters"},
		domain.Category{ID: "pizza", Name: "Pizza"},
		domain.Category{ID: "grill", Name: "Grill"},
		domain.Category{ID: "desserts", Name: "Desserts"},
		domain.Category{ID: "drinks", Name: "Drinks"},
	)
	g.AddItems("starters",
		domain.Item{ID: "hummus", Name: "Hummus", NameAr: "حمص", Description: "Chickpea dip with *tahini*", Price: 3000},
		domain.Item{ID: "fattoush", Name: "Fattoush", NameAr: "فتوش", Description: "Crisp bread salad", Price: 4000},
	)
	g.AddItems("pizza",
		domain.Item{ID: "margherita", Name: "Margherita Pizza", NameAr: "بيتزا مارغريتا", Description: "Tomato, mozzarella, basil", Price: 9000},
		domain.Item{ID: "pepperoni", Name: "Pepperoni Pizza", NameAr: "بيتزا بيبروني", Price: 11000},
	)
	g.AddItems("grill",
		domain.Item{ID: "kebab", Name: "Kebab", NameAr: "كباب", Description: "Charcoal grilled lamb", Price: 12000},
		domain.Item{ID: "tikka", Name: "Chicken Tikka", NameAr: "تكة دجاج", Price: 10000},
	)
	g.AddItems("desserts",
		domain.Item{ID: "kunafa", Name: "Kunafa", NameAr: "كنافة", Description: "Warm cheese pastry", Price: 5000},
	)
	return g
}
