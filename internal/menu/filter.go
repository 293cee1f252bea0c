package menu

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

// MatchMode selects the item fields searched for non-Arabic locales.
type MatchMode int

const (
	// MatchNameAndDescription searches the English name and the description.
	MatchNameAndDescription MatchMode = iota
	// MatchNameOnly searches the English name only.
	MatchNameOnly
)

func (m MatchMode) String() string {
	if m == MatchNameOnly {
		return "name"
	}
	return "name_description"
}

// ParseMatchMode parses the configuration value of a MatchMode.
func ParseMatchMode(value string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "name_description", "name+description":
		return MatchNameAndDescription, nil
	case "name", "name_only":
		return MatchNameOnly, nil
	default:
		return MatchNameAndDescription, fmt.Errorf("menu: unknown search mode %q", value)
	}
}

// Filter returns the items matching term for locale, in their original order. A blank term returns
// items unchanged. Arabic matches the Arabic name only; other locales match the English name or the
// description. Matching is a case-insensitive substring test on NFC-normalised text, and an item
// without the locale's name never matches.
func Filter(items []domain.Item, term string, locale domain.Locale) []domain.Item {
	return FilterWithMode(items, term, locale, MatchNameAndDescription)
}

// FilterWithMode is Filter with an explicit choice of searched fields.
func FilterWithMode(items []domain.Item, term string, locale domain.Locale, mode MatchMode) []domain.Item {
	term = strings.TrimSpace(term)
	if term == "" {
		return items
	}

	fold := cases.Fold()
	normalize := func(s string) string {
		return fold.String(norm.NFC.String(s))
	}
	needle := normalize(term)

	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		name := item.LocalizedName(locale)
		if strings.TrimSpace(name) == "" {
			continue
		}
		if strings.Contains(normalize(name), needle) {
			out = append(out, item)
			continue
		}
		if locale == domain.LocaleArabic || mode == MatchNameOnly || item.Description == "" {
			continue
		}
		if strings.Contains(normalize(item.Description), needle) {
			out = append(out, item)
		}
	}
	return out
}

// CategoryGroup is one section of the grouped "all items" view.
type CategoryGroup struct {
	Category domain.Category
	Items    []domain.Item
}

// GroupByCategory arranges items under their categories in category order. Categories without items
// are omitted; items whose category is unknown are dropped.
func GroupByCategory(categories []domain.Category, items []domain.Item) []CategoryGroup {
	byCategory := make(map[string][]domain.Item, len(categories))
	for _, item := range items {
		byCategory[item.CategoryID] = append(byCategory[item.CategoryID], item)
	}
	groups := make([]CategoryGroup, 0, len(categories))
	for _, c := range categories {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		groups = append(groups, CategoryGroup{Category: c, Items: byCategory[c.ID]})
	}
	return groups
}
