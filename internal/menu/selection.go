package menu

import (
	"errors"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

var (
	// ErrUnknownCategory indicates a selection for a category that has not been loaded.
	ErrUnknownCategory = errors.New("menu: category not found")
	// ErrUnknownItem indicates an open request for an item that has not been loaded.
	ErrUnknownItem = errors.New("menu: item not found")
)

// StripGeometry locates a category button inside the horizontally scrolling strip.
type StripGeometry struct {
	TargetOffsetLeft float64
	TargetWidth      float64
	ContainerWidth   float64
}

// CenterOffset returns the scroll offset that centres the target button in its container.
func CenterOffset(g StripGeometry) float64 {
	return g.TargetOffsetLeft - g.ContainerWidth/2 + g.TargetWidth/2
}

// ScrollRequest asks the presentation layer to bring a category button into view. Offset is only
// meaningful when HasOffset is set; otherwise the client centres the button itself.
type ScrollRequest struct {
	Seq        uint64
	CategoryID string
	Offset     float64
	HasOffset  bool
}

// Selection owns the selected category and the open item. It is not safe for concurrent use; Browser
// guards it.
type Selection struct {
	categoryID string
	item       *domain.Item
	scroll     *ScrollRequest
	seq        uint64
}

// CategoryID returns the selected category, or "" before any category has arrived.
func (s *Selection) CategoryID() string {
	return s.categoryID
}

// Reconcile applies the default-selection rules after the category list changed. The first category
// is selected when nothing is selected yet or the selected id is no longer present. It reports the
// selected id and whether it changed.
func (s *Selection) Reconcile(categories []domain.Category) (string, bool) {
	if len(categories) == 0 {
		return s.categoryID, false
	}
	if s.categoryID != "" && containsCategory(categories, s.categoryID) {
		return s.categoryID, false
	}
	s.categoryID = categories[0].ID
	s.requestScroll(s.categoryID, nil)
	return s.categoryID, true
}

// Select makes id the selected category and records a scroll-into-view request. geometry may be nil
// when the caller does not know the button layout.
func (s *Selection) Select(categories []domain.Category, id string, geometry *StripGeometry) error {
	if !containsCategory(categories, id) {
		return ErrUnknownCategory
	}
	s.categoryID = id
	s.requestScroll(id, geometry)
	return nil
}

// OpenItem records the item shown in the detail dialog.
func (s *Selection) OpenItem(item domain.Item) {
	s.item = &item
}

// CloseItem dismisses the detail dialog.
func (s *Selection) CloseItem() {
	s.item = nil
}

// Item returns the open item.
func (s *Selection) Item() (domain.Item, bool) {
	if s.item == nil {
		return domain.Item{}, false
	}
	return *s.item, true
}

// ScrollRequest returns the most recent scroll-into-view request.
func (s *Selection) ScrollRequest() *ScrollRequest {
	if s.scroll == nil {
		return nil
	}
	req := *s.scroll
	return &req
}

func (s *Selection) requestScroll(id string, geometry *StripGeometry) {
	s.seq++
	req := &ScrollRequest{Seq: s.seq, CategoryID: id}
	if geometry != nil {
		req.Offset = CenterOffset(*geometry)
		req.HasOffset = true
	}
	s.scroll = req
}

func containsCategory(categories []domain.Category, id string) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}
