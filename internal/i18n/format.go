package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

// DefaultCurrencyLabel prefixes menu prices.
const DefaultCurrencyLabel = "IQD"

// FormatPrice renders a price with locale digit grouping, e.g. "IQD 12,000". Iraqi dinar prices are
// whole units, so the amount is printed without a fractional part.
func FormatPrice(locale domain.Locale, amount int64, currencyLabel string) string {
	currencyLabel = strings.TrimSpace(currencyLabel)
	if currencyLabel == "" {
		currencyLabel = DefaultCurrencyLabel
	}
	if amount < 0 {
		amount = 0
	}
	tag, err := language.Parse(string(locale))
	if err != nil {
		tag = language.English
	}
	return currencyLabel + " " + message.NewPrinter(tag).Sprintf("%d", amount)
}
