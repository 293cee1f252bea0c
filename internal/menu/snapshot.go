package menu

import (
	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

// Snapshot is the read-only state handed to the presentation layer after every change.
type Snapshot struct {
	Version      uint64
	RestaurantID string
	Restaurant   *domain.Restaurant

	Categories  []domain.Category
	Pagination  PaginationStatus
	PagesLoaded int

	SelectedCategoryID string
	ItemsForSelection  []domain.Item
	FilteredItems      []domain.Item
	SelectedItem       *domain.Item

	IsLoadingItems             bool
	IsFetchingNextCategoryPage bool

	SearchTerm string
	Locale     domain.Locale
	// NoResults is set once the selected category's items are loaded and nothing is visible.
	NoResults bool
	ScrollTo  *ScrollRequest
	// Error holds the most recent transient fetch failure, cleared by the next success.
	Error string
}
