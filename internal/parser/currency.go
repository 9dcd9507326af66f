package parser

import (
	"strings"
	"unicode"
)

type currencyAlias struct {
	alias string
	code  string
}

// currencyAliases maps symbols, ISO codes and Arabic/English names to ISO-4217
// codes. Aliases are matched case-insensitively.
var currencyAliases = []currencyAlias{
	{"د.ع", "IQD"}, {"دينار عراقي", "IQD"}, {"دينار", "IQD"}, {"Iraqi Dinar", "IQD"}, {"IQD", "IQD"},
	{"ج.م", "EGP"}, {"جنيه", "EGP"}, {"جنيه مصري", "EGP"}, {"EGP", "EGP"},
	{"ر.س", "SAR"}, {"ريال", "SAR"}, {"ريال سعودي", "SAR"}, {"SAR", "SAR"},
	{"د.إ", "AED"}, {"درهم", "AED"}, {"درهم إماراتي", "AED"}, {"AED", "AED"},
	{"د.ك", "KWD"}, {"دينار كويتي", "KWD"}, {"KWD", "KWD"},
	{"ر.ق", "QAR"}, {"ريال قطري", "QAR"}, {"QAR", "QAR"},
	{"ر.ع", "OMR"}, {"ريال عماني", "OMR"}, {"OMR", "OMR"},
	{"د.ب", "BHD"}, {"دينار بحريني", "BHD"}, {"BHD", "BHD"},
	{"ج.س", "SDG"}, {"جنيه سوداني", "SDG"}, {"SDG", "SDG"},
	{"د.ل", "LYD"}, {"دينار ليبي", "LYD"}, {"LYD", "LYD"},
	{"د.أ", "JOD"}, {"دينار أردني", "JOD"}, {"JOD", "JOD"},
	{"ل.ل", "LBP"}, {"ليرة لبنانية", "LBP"}, {"LBP", "LBP"},
	{"د.ت", "TND"}, {"دينار تونسي", "TND"}, {"TND", "TND"},
	{"د.ج", "DZD"}, {"دينار جزائري", "DZD"}, {"DZD", "DZD"},
	{"د.م", "MAD"}, {"درهم مغربي", "MAD"}, {"MAD", "MAD"},
	{"ر.ي", "YER"}, {"ريال يمني", "YER"}, {"YER", "YER"},
	{"ل.س", "SYP"}, {"ليرة سورية", "SYP"}, {"SYP", "SYP"},
	{"$", "USD"}, {"دولار أمريكي", "USD"}, {"دولار", "USD"}, {"USD", "USD"}, {"Dollar", "USD"},
	{"€", "EUR"}, {"يورو", "EUR"}, {"EUR", "EUR"}, {"Euro", "EUR"},
	{"£", "GBP"}, {"جنيه استرليني", "GBP"}, {"GBP", "GBP"},
	{"¥", "JPY"}, {"ين ياباني", "JPY"}, {"JPY", "JPY"},
	{"CHF", "CHF"}, {"فرنك سويسري", "CHF"},
	{"AUD", "AUD"}, {"دولار أسترالي", "AUD"},
	{"CAD", "CAD"}, {"دولار كندي", "CAD"}, {"C$", "CAD"},
	{"₩", "KRW"}, {"وُن كوري", "KRW"}, {"KRW", "KRW"},
	{"CNY", "CNY"}, {"يوان صيني", "CNY"}, {"RMB", "CNY"},
	{"INR", "INR"}, {"روبية هندية", "INR"},
	{"RUB", "RUB"}, {"روبل روسي", "RUB"},
}

var (
	aliasIndex  = buildAliasIndex()
	scanAliases = buildScanAliases()
)

func buildAliasIndex() map[string]string {
	idx := make(map[string]string, len(currencyAliases))
	for _, a := range currencyAliases {
		key := strings.ToLower(a.alias)
		if _, dup := idx[key]; !dup {
			idx[key] = a.code
		}
	}
	return idx
}

func buildScanAliases() []currencyAlias {
	out := make([]currencyAlias, len(currencyAliases))
	for i, a := range currencyAliases {
		out[i] = currencyAlias{alias: strings.ToLower(a.alias), code: a.code}
	}
	return out
}

// NormalizeCurrency maps a symbol, name or code to its ISO-4217 code. Unknown
// input is returned trimmed and upper-cased; downstream conversion treats such
// codes as unsupported rather than failing.
func NormalizeCurrency(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if code, ok := aliasIndex[strings.ToLower(trimmed)]; ok {
		return code
	}
	return strings.ToUpper(trimmed)
}

// IsKnownCurrency reports whether raw resolves through the alias table.
func IsKnownCurrency(raw string) bool {
	_, ok := aliasIndex[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// FindCurrency returns the currency whose alias appears first in text. When
// two aliases start at the same offset the longer one wins, so "C$" beats "$"
// and "دينار كويتي" beats "دينار". Purely alphabetic Latin aliases (ISO codes,
// "euro") must stand alone as words, optionally pluralized for names, so that
// "europe" or "usdt" do not match.
func FindCurrency(text string) (string, bool) {
	lower := strings.ToLower(text)

	bestAt, bestLen := -1, 0
	code := ""
	for _, a := range scanAliases {
		at := aliasIndexIn(lower, a.alias)
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt || at == bestAt && len(a.alias) > bestLen {
			bestAt, bestLen, code = at, len(a.alias), a.code
		}
	}
	return code, bestAt >= 0
}

// aliasIndexIn returns the byte offset of the first valid occurrence of alias
// in text, or -1.
func aliasIndexIn(text, alias string) int {
	if !isLatinWord(alias) {
		return strings.Index(text, alias)
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], alias)
		if i < 0 {
			return -1
		}
		start := from + i
		end := start + len(alias)
		if !letterBefore(text, start) && !wordContinues(text, end, alias) {
			return start
		}
		from = start + 1
	}
	return -1
}

// wordContinues reports whether a letter follows the alias at i. A plural "s"
// after a currency name ("dollars", "euros") does not count; ISO codes take
// no plural.
func wordContinues(text string, i int, alias string) bool {
	if !letterAfter(text, i) {
		return false
	}
	if len(alias) > 3 && text[i] == 's' && !letterAfter(text, i+1) {
		return false
	}
	return true
}

func isLatinWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return s != ""
}

func letterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r := []rune(s[:i])
	return unicode.IsLetter(r[len(r)-1])
}

func letterAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	for _, r := range s[i:] {
		return unicode.IsLetter(r)
	}
	return false
}
