// Package parser turns raw storefront text into prices and currency codes.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`^\d*\.?\d*`)

var digitReplacer = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٬", ",", "٫", ".",
)

var zeroWidthReplacer = strings.NewReplacer(
	"\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "",
)

// NormalizeDigits converts Arabic-Indic digits and separators to Latin ones.
func NormalizeDigits(s string) string {
	return digitReplacer.Replace(s)
}

// leadingFloat parses the longest decimal prefix of s ("12.5abc" -> 12.5,
// ".5" -> 0.5, "1.2.3" -> 1.2). ok is false when s has no leading number.
func leadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(s)
	if m == "" || m == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(m, "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
