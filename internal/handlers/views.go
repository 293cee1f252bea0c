package handlers

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
	"github.com/IqDevHose/grandm-qrcode/internal/i18n"
	"github.com/IqDevHose/grandm-qrcode/internal/menu"
)

// viewRenderer turns browser snapshots into localized JSON view models.
type viewRenderer struct {
	bundle        *i18n.Bundle
	currencyLabel string
	markdown      goldmark.Markdown
	policy        *bluemonday.Policy
}

// newViewRenderer constructs a renderer. An empty currency label selects i18n.DefaultCurrencyLabel.
func newViewRenderer(bundle *i18n.Bundle, currencyLabel string) *viewRenderer {
	if strings.TrimSpace(currencyLabel) == "" {
		currencyLabel = i18n.DefaultCurrencyLabel
	}
	return &viewRenderer{
		bundle:        bundle,
		currencyLabel: currencyLabel,
		markdown:      goldmark.New(),
		policy:        bluemonday.UGCPolicy(),
	}
}

type snapshotView struct {
	SessionID          string             `json:"session_id"`
	Version            uint64             `json:"version"`
	Locale             string             `json:"locale"`
	Dir                string             `json:"dir"`
	Labels             labelsView         `json:"labels"`
	Restaurant         *restaurantView    `json:"restaurant,omitempty"`
	Categories         []categoryView     `json:"categories"`
	Pagination         paginationView     `json:"pagination"`
	SelectedCategoryID string             `json:"selected_category_id,omitempty"`
	Items              []itemView         `json:"items"`
	IsLoadingItems     bool               `json:"is_loading_items"`
	SearchTerm         string             `json:"search_term"`
	NoResults          bool               `json:"no_results"`
	NoResultsMessage   string             `json:"no_results_message,omitempty"`
	SelectedItem       *itemDetailView    `json:"selected_item,omitempty"`
	ScrollTo           *scrollRequestView `json:"scroll_to,omitempty"`
	Error              string             `json:"error,omitempty"`
	ErrorDetail        string             `json:"error_detail,omitempty"`
}

type labelsView struct {
	Title             string `json:"title"`
	SearchPlaceholder string `json:"search_placeholder"`
	LanguageToggle    string `json:"language_toggle"`
	All               string `json:"all"`
}

type restaurantView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image,omitempty"`
	ThemeColor string `json:"theme_color,omitempty"`
}

type categoryView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

type paginationView struct {
	HasNext     bool `json:"has_next"`
	InFlight    bool `json:"in_flight"`
	PagesLoaded int  `json:"pages_loaded"`
}

type itemView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	PriceLabel string `json:"price_label"`
	Image      string `json:"image,omitempty"`
	CategoryID string `json:"category_id"`
}

type itemDetailView struct {
	itemView
	Description     string `json:"description"`
	DescriptionHTML string `json:"description_html,omitempty"`
}

type scrollRequestView struct {
	Seq        uint64   `json:"seq"`
	CategoryID string   `json:"category_id"`
	Offset     *float64 `json:"offset,omitempty"`
}

type groupView struct {
	Category categoryView `json:"category"`
	Items    []itemView   `json:"items"`
}

// snapshot renders a session snapshot.
func (v *viewRenderer) snapshot(sessionID string, snap menu.Snapshot) snapshotView {
	locale := snap.Locale
	view := snapshotView{
		SessionID: sessionID,
		Version:   snap.Version,
		Locale:    string(locale),
		Dir:       locale.Direction(),
		Labels: labelsView{
			Title:             v.bundle.T(locale, "app.title"),
			SearchPlaceholder: v.bundle.T(locale, "search.placeholder"),
			LanguageToggle:    v.bundle.T(locale, "language.toggle"),
			All:               v.bundle.T(locale, "category.all"),
		},
		Categories: make([]categoryView, 0, len(snap.Categories)),
		Pagination: paginationView{
			HasNext:     snap.Pagination.HasNext,
			InFlight:    snap.Pagination.InFlight,
			PagesLoaded: snap.PagesLoaded,
		},
		SelectedCategoryID: snap.SelectedCategoryID,
		Items:              make([]itemView, 0, len(snap.FilteredItems)),
		IsLoadingItems:     snap.IsLoadingItems,
		SearchTerm:         snap.SearchTerm,
		NoResults:          snap.NoResults,
	}
	if r := snap.Restaurant; r != nil {
		view.Restaurant = &restaurantView{ID: r.ID, Name: r.Name, Image: r.Image, ThemeColor: r.Theme.Primary}
	}
	for _, c := range snap.Categories {
		view.Categories = append(view.Categories, v.category(locale, c, snap.SelectedCategoryID))
	}
	for _, item := range snap.FilteredItems {
		view.Items = append(view.Items, v.item(locale, item))
	}
	if snap.NoResults {
		view.NoResultsMessage = v.bundle.T(locale, "search.no_results")
	}
	if snap.SelectedItem != nil {
		detail := v.itemDetail(locale, *snap.SelectedItem)
		view.SelectedItem = &detail
	}
	if req := snap.ScrollTo; req != nil {
		scroll := &scrollRequestView{Seq: req.Seq, CategoryID: req.CategoryID}
		if req.HasOffset {
			offset := req.Offset
			scroll.Offset = &offset
		}
		view.ScrollTo = scroll
	}
	if snap.Error != "" {
		view.Error = v.bundle.T(locale, "error.fetch")
		view.ErrorDetail = snap.Error
	}
	return view
}

// groups renders the grouped "all items" view.
func (v *viewRenderer) groups(locale domain.Locale, groups []menu.CategoryGroup) []groupView {
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		gv := groupView{
			Category: v.category(locale, g.Category, ""),
			Items:    make([]itemView, 0, len(g.Items)),
		}
		for _, item := range g.Items {
			gv.Items = append(gv.Items, v.item(locale, item))
		}
		out = append(out, gv)
	}
	return out
}

func (v *viewRenderer) category(locale domain.Locale, c domain.Category, selectedID string) categoryView {
	return categoryView{
		ID:       c.ID,
		Label:    v.bundle.T(locale, c.Name),
		Selected: c.ID == selectedID,
	}
}

func (v *viewRenderer) item(locale domain.Locale, item domain.Item) itemView {
	name := item.LocalizedName(locale)
	if name == "" {
		name = item.Name
	}
	return itemView{
		ID:         item.ID,
		Name:       name,
		Price:      item.Price,
		PriceLabel: i18n.FormatPrice(locale, item.Price, v.currencyLabel),
		Image:      item.Image,
		CategoryID: item.CategoryID,
	}
}

func (v *viewRenderer) itemDetail(locale domain.Locale, item domain.Item) itemDetailView {
	detail := itemDetailView{itemView: v.item(locale, item)}
	description := strings.TrimSpace(item.Description)
	if description == "" {
		detail.Description = v.bundle.T(locale, "item.no_details")
		return detail
	}
	detail.Description = description
	detail.DescriptionHTML = v.renderMarkdown(description)
	return detail
}

// renderMarkdown converts an item description to sanitized HTML. Plain text is returned escaped
// when the markdown cannot be rendered.
func (v *viewRenderer) renderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := v.markdown.Convert([]byte(source), &buf); err != nil {
		return v.policy.Sanitize(source)
	}
	return strings.TrimSpace(v.policy.Sanitize(buf.String()))
}
