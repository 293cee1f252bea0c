package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

func loadBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := Load("../../locales", domain.LocaleEnglish, []domain.Locale{domain.LocaleEnglish, domain.LocaleArabic})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return b
}

func TestResolveHonorsQValues(t *testing.T) {
	b := loadBundle(t)
	if got := b.Resolve("en;q=0.8, ar-IQ;q=0.9"); got != domain.LocaleArabic {
		t.Fatalf("expected ar, got %s", got)
	}
	if got := b.Resolve("fr-FR, de;q=0.5"); got != domain.LocaleEnglish {
		t.Fatalf("expected fallback en, got %s", got)
	}
	if got := b.Resolve(""); got != domain.LocaleEnglish {
		t.Fatalf("expected fallback for empty header, got %s", got)
	}
}

func TestTranslateFallsBack(t *testing.T) {
	b := loadBundle(t)
	if got := b.T(domain.LocaleArabic, "search.no_results"); got != "لم يتم العثور على أصناف مطابقة لبحثك." {
		t.Fatalf("unexpected arabic translation %q", got)
	}
	if got := b.T(domain.LocaleEnglish, "search.no_results"); got != "No items found matching your search." {
		t.Fatalf("unexpected english translation %q", got)
	}
	if got := b.T(domain.LocaleEnglish, "Grill"); got != "Grill" {
		t.Fatalf("expected untranslated key to be returned, got %q", got)
	}
	if got := b.T(domain.LocaleArabic, "Grill"); got != "المشويات" {
		t.Fatalf("expected arabic category label, got %q", got)
	}
}

func TestLoadFSReadsJSONAndRequiresFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"en.json": {Data: []byte(`{"hello":"Hello"}`)},
	}
	b, err := LoadFS(fsys, domain.LocaleEnglish, []domain.Locale{domain.LocaleEnglish, domain.LocaleArabic})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := b.T(domain.LocaleArabic, "hello"); got != "Hello" {
		t.Fatalf("expected fallback translation, got %q", got)
	}

	if _, err := LoadFS(fstest.MapFS{}, domain.LocaleEnglish, nil); err == nil {
		t.Fatalf("expected missing fallback locale to fail")
	}
}

func TestParseAndToggle(t *testing.T) {
	b := loadBundle(t)
	if l, ok := b.Parse("AR"); !ok || l != domain.LocaleArabic {
		t.Fatalf("expected ar, got %s (%v)", l, ok)
	}
	if _, ok := b.Parse("xx-invalid-tag-!"); ok {
		t.Fatalf("expected invalid tag to be rejected")
	}
	if got := b.Toggle(domain.LocaleEnglish); got != domain.LocaleArabic {
		t.Fatalf("expected toggle to ar, got %s", got)
	}
	if got := b.Toggle(domain.LocaleArabic); got != domain.LocaleEnglish {
		t.Fatalf("expected toggle to en, got %s", got)
	}
}

func TestFromRequestPrecedence(t *testing.T) {
	b := loadBundle(t)

	req := httptest.NewRequest(http.MethodGet, "/?hl=ar", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "en"})
	req.Header.Set("Accept-Language", "en")
	if got := b.FromRequest(req); got != domain.LocaleArabic {
		t.Fatalf("expected query to win, got %s", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "ar"})
	req.Header.Set("Accept-Language", "en")
	if got := b.FromRequest(req); got != domain.LocaleArabic {
		t.Fatalf("expected cookie to win over header, got %s", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ar")
	rec := httptest.NewRecorder()
	var seen domain.Locale
	Middleware(b)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = LocaleFrom(r.Context())
	})).ServeHTTP(rec, req)
	if seen != domain.LocaleArabic || rec.Header().Get("Content-Language") != "ar" {
		t.Fatalf("expected middleware to store ar, got %q / %q", seen, rec.Header().Get("Content-Language"))
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(domain.LocaleEnglish, 12000, ""); got != "IQD 12,000" {
		t.Fatalf("expected IQD 12,000, got %q", got)
	}
	if got := FormatPrice(domain.LocaleEnglish, -5, "USD"); got != "USD 0" {
		t.Fatalf("expected negative prices to clamp, got %q", got)
	}
}
