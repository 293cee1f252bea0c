package i18n

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

// Bundle holds translated strings per locale and resolves client language preferences.
type Bundle struct {
	dict      map[domain.Locale]map[string]string
	fallback  domain.Locale
	supported []domain.Locale
	matcher   language.Matcher
}

// Load reads <locale>.json, <locale>.yaml or <locale>.yml from dir for every supported locale.
// Only the fallback locale is required to exist.
func Load(dir string, fallback domain.Locale, supported []domain.Locale) (*Bundle, error) {
	return LoadFS(os.DirFS(dir), fallback, supported)
}

// LoadFS is Load over an arbitrary file system.
func LoadFS(fsys fs.FS, fallback domain.Locale, supported []domain.Locale) (*Bundle, error) {
	if fallback == "" {
		fallback = domain.LocaleEnglish
	}
	if len(supported) == 0 {
		supported = []domain.Locale{domain.LocaleEnglish, domain.LocaleArabic}
	}
	if !containsLocale(supported, fallback) {
		supported = append([]domain.Locale{fallback}, supported...)
	}

	b := &Bundle{
		dict:     make(map[domain.Locale]map[string]string, len(supported)),
		fallback: fallback,
	}
	tags := make([]language.Tag, 0, len(supported))
	// The fallback goes first so the matcher prefers it when nothing matches.
	ordered := append([]domain.Locale{fallback}, withoutLocale(supported, fallback)...)
	for _, l := range ordered {
		tag, err := language.Parse(string(l))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("i18n: invalid locale %q", l), err)
		}
		m, err := readLocale(fsys, l)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && l != fallback {
				m = map[string]string{}
			} else {
				return nil, fmt.Errorf("i18n: load locale %s: %w", l, err)
			}
		}
		b.dict[l] = m
		b.supported = append(b.supported, l)
		tags = append(tags, tag)
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

func readLocale(fsys fs.FS, l domain.Locale) (map[string]string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		raw, err := fs.ReadFile(fsys, string(l)+ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		m := map[string]string{}
		if ext == ".json" {
			err = json.Unmarshal(raw, &m)
		} else {
			err = yaml.Unmarshal(raw, &m)
		}
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", filepath.Base(string(l)+ext), err)
		}
		return m, nil
	}
	return nil, fs.ErrNotExist
}

// Supported returns the supported locales sorted by code.
func (b *Bundle) Supported() []domain.Locale {
	out := append([]domain.Locale(nil), b.supported...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fallback returns the configured fallback locale.
func (b *Bundle) Fallback() domain.Locale { return b.fallback }

// IsSupported reports whether translations exist for the locale.
func (b *Bundle) IsSupported(l domain.Locale) bool {
	return containsLocale(b.supported, l)
}

// T returns the translation for key in locale, falling back to the default locale and finally the key.
func (b *Bundle) T(locale domain.Locale, key string) string {
	if m, ok := b.dict[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := b.dict[b.fallback]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// Parse maps a language code such as "ar", "AR" or "ar-IQ" onto a supported locale.
func (b *Bundle) Parse(code string) (domain.Locale, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	_, idx, conf := b.matcher.Match(tag)
	if conf == language.No {
		return "", false
	}
	return b.supported[idx], true
}

// Resolve picks the best supported locale for an Accept-Language header, honouring q-values.
func (b *Bundle) Resolve(acceptLanguage string) domain.Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return b.fallback
	}
	return b.supported[idx]
}

// Toggle returns the other supported locale of a two-language menu, or the fallback.
func (b *Bundle) Toggle(current domain.Locale) domain.Locale {
	for _, l := range b.supported {
		if l != current {
			return l
		}
	}
	return b.fallback
}

func containsLocale(list []domain.Locale, l domain.Locale) bool {
	for _, v := range list {
		if v == l {
			return true
		}
	}
	return false
}

func withoutLocale(list []domain.Locale, l domain.Locale) []domain.Locale {
	out := make([]domain.Locale, 0, len(list))
	for _, v := range list {
		if v != l {
			out = append(out, v)
		}
	}
	return out
}
