package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	// MinPrice and MaxPrice bound accepted prices. Values outside are almost
	// always misparsed dates, SKUs or phone numbers.
	MinPrice = 0.01
	MaxPrice = 100_000_000
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	priceDigits    = regexp.MustCompile(`\d[\d,.]*`)
	barePercentage = regexp.MustCompile(`^-?\d+(?:[.,]\d+)?\s*%$`)
	nonNumeric     = regexp.MustCompile(`[^\d.]`)

	discountKeywords = []string{"خصم", "توفير", "تخفيض", "نسبة", "discount", "off", "sale"}
	stockKeywords    = []string{"غير متوفر", "غير متاح", "نفدت الكمية", "بيعت الكمية", "out of stock", "unavailable"}

	enUS = message.NewPrinter(language.AmericanEnglish)
)

// PriceResult is the outcome of ParsePrice. Price is nil when the text holds
// no acceptable price. OriginalText is the cleaned input.
type PriceResult struct {
	Price        *float64
	OriginalText string
}

// Found reports whether a price was parsed.
func (r PriceResult) Found() bool {
	return r.Price != nil
}

// CleanText trims, strips zero-width characters, collapses whitespace and
// converts Arabic-Indic digits and separators.
func CleanText(text string) string {
	s := strings.TrimSpace(text)
	s = zeroWidthReplacer.Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return NormalizeDigits(s)
}

// ParsePrice extracts the first number in text, treating commas as thousands
// separators and the dot as decimal mark.
func ParsePrice(text string) PriceResult {
	clean := CleanText(text)
	res := PriceResult{OriginalText: clean}

	match := priceDigits.FindString(clean)
	if match == "" {
		return res
	}

	value, ok := leadingFloat(strings.ReplaceAll(match, ",", ""))
	if !ok || !inBounds(value) {
		return res
	}

	res.Price = &value
	return res
}

// IsValidPrice is a cheap pre-filter for candidate price text. It rejects
// discount badges such as "20% off", stock messages, text without digits and
// numbers outside the accepted bounds.
func IsValidPrice(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	lower := strings.ToLower(text)
	if isDiscountBadge(lower) {
		return false
	}

	for _, kw := range stockKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}

	normalized := NormalizeDigits(text)
	if !strings.ContainsAny(normalized, "0123456789") {
		return false
	}

	compact := strings.NewReplacer(",", "", " ", "", "\t", "", "\n", "").Replace(normalized)
	value, ok := leadingFloat(nonNumeric.ReplaceAllString(compact, ""))
	if !ok || value <= 0 || value > MaxPrice {
		return false
	}
	return true
}

// isDiscountBadge reports whether lower is a bare percentage, optionally
// decorated with discount words ("-20%", "20% off", "خصم 15%").
func isDiscountBadge(lower string) bool {
	if !strings.Contains(lower, "%") {
		return false
	}
	rest := NormalizeDigits(lower)
	for _, kw := range discountKeywords {
		rest = strings.ReplaceAll(rest, kw, "")
	}
	rest = strings.Trim(rest, " \t\n:-–")
	if strings.HasPrefix(strings.TrimSpace(lower), "-") {
		rest = "-" + rest
	}
	return barePercentage.MatchString(rest)
}

func inBounds(v float64) bool {
	return v > MinPrice && v <= MaxPrice
}

// FormatPrice renders v with en-US digit grouping and at most three fraction
// digits, e.g. 1234.5 -> "1,234.5".
func FormatPrice(v float64) string {
	return enUS.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// FullPrice joins a formatted price and currency ("1,234.5 SAR").
func FullPrice(v float64, currency string) string {
	if currency == "" {
		return FormatPrice(v)
	}
	return FormatPrice(v) + " " + currency
}

// FormatPlain renders v without grouping or trailing zeros ("1234.5").
func FormatPlain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
