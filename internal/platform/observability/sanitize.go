package observability

import (
	"strings"
	"unicode"
)

const (
	routeLimit      = 180
	sessionIDLimit  = 64
	searchTermLimit = 64
)

// clean drops control characters and keeps at most limit runes.
func clean(value string, limit int) string {
	out := make([]rune, 0, min(len(value), limit))
	for _, r := range value {
		if len(out) == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// SanitizeRoute cleans a route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clean(route, routeLimit)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return clean(method, 10)
}

// SanitizeSessionID keeps the characters a session id can contain (ULIDs and the demo ids) so a
// crafted path segment cannot forge log fields.
func SanitizeSessionID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if b.Len() == sessionIDLimit {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeSearchTerm folds a user's search input onto one line and bounds it before it is logged.
// Runs of whitespace collapse to a single space.
func SanitizeSearchTerm(term string) string {
	return clean(strings.Join(strings.Fields(term), " "), searchTermLimit)
}
