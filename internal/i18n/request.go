package i18n

import (
	"context"
	"net/http"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

// CookieName is the cookie and query parameter carrying an explicit language choice.
const CookieName = "hl"

type contextKey string

const localeKey contextKey = "github.com/IqDevHose/grandm-qrcode/internal/i18n/locale"

// FromRequest resolves the locale of a request: the hl query parameter, then the hl cookie, then
// Accept-Language.
func (b *Bundle) FromRequest(r *http.Request) domain.Locale {
	if l, ok := b.Parse(r.URL.Query().Get(CookieName)); ok {
		return l
	}
	if c, err := r.Cookie(CookieName); err == nil {
		if l, ok := b.Parse(c.Value); ok {
			return l
		}
	}
	return b.Resolve(r.Header.Get("Accept-Language"))
}

// Middleware stores the resolved locale on the request context and surfaces it as Content-Language.
// An explicit hl query parameter is remembered in a cookie.
func Middleware(b *Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := b.FromRequest(r)
			if q := r.URL.Query().Get(CookieName); q != "" {
				if _, ok := b.Parse(q); ok {
					http.SetCookie(w, &http.Cookie{Name: CookieName, Value: string(locale), Path: "/", SameSite: http.SameSiteLaxMode})
				}
			}
			w.Header().Set("Content-Language", string(locale))
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
		})
	}
}

// WithLocale stores the locale on the context.
func WithLocale(ctx context.Context, locale domain.Locale) context.Context {
	return context.WithValue(ctx, localeKey, locale)
}

// LocaleFrom returns the locale stored on the context, if any.
func LocaleFrom(ctx context.Context) (domain.Locale, bool) {
	l, ok := ctx.Value(localeKey).(domain.Locale)
	return l, ok && l != ""
}
