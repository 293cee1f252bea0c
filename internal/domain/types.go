package domain

// Locale identifies the display language of a browsing session.
type Locale string

const (
	// LocaleEnglish renders left-to-right with English names.
	LocaleEnglish Locale = "en"
	// LocaleArabic renders right-to-left with Arabic names.
	LocaleArabic Locale = "ar"
)

// RTL reports whether the locale lays content out right-to-left.
func (l Locale) RTL() bool {
	return l == LocaleArabic
}

// Direction returns the HTML dir attribute value for the locale.
func (l Locale) Direction() string {
	if l.RTL() {
		return "rtl"
	}
	return "ltr"
}

// Category is a selectable group of menu items. Categories never change once fetched.
type Category struct {
	ID   string
	Name string
}

// Item is a single menu entry owned by exactly one category.
type Item struct {
	ID          string
	Name        string
	NameAr      string
	Description string
	// Price is in whole currency units and is never negative.
	Price      int64
	Image      string
	CategoryID string
}

// LocalizedName returns the name shown for the locale. Arabic has its own field; every other
// locale falls back to the English name.
func (i Item) LocalizedName(locale Locale) string {
	if locale == LocaleArabic {
		return i.NameAr
	}
	return i.Name
}

// CategoryPage is one page of categories as returned by the backend.
// A nil NextCursor means no further pages exist.
type CategoryPage struct {
	Items      []Category
	NextCursor *string
}

// HasNext reports whether the backend advertised another page.
func (p CategoryPage) HasNext() bool {
	return p.NextCursor != nil
}

// Theme carries restaurant branding.
type Theme struct {
	Primary string
}

// Restaurant is the header information shown above the category strip.
type Restaurant struct {
	ID    string
	Name  string
	Image string
	Theme Theme
}

// Cursor returns a pointer to a copy of token, for use as a CategoryPage cursor.
func Cursor(token string) *string {
	return &token
}
