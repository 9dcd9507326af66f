package extract

import (
	"log/slog"
	"strings"

	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/parser"
)

var (
	priceMetaSelectors = []string{
		"meta[property='product:price:amount']",
		"meta[property='product:price']",
		"meta[itemprop='price']",
		"meta[name='price']",
		"meta[property='og:price:amount']",
	}

	// Ordered from marketplace-specific to generic. The last entry skips
	// crossed-out or promotional price elements.
	priceSelectors = []string{
		".a-price .a-offscreen",
		"#priceblock_ourprice",
		"[itemprop='price']",
		"[data-price]",
		".price",
		".sellingPrice",
		".current-price",
		".offer-price",
		"[id*='price' i]",
		".product-price",
		".regular-price",
		".amount",
		".cost",
		".value",
		".a-button-text .a-text-price",
		"[class*='Price']:not([class*='Old']):not([class*='Strike']):not([class*='Original']):not([class*='sale']):not([class*='discount'])",
	}

	currencyMetaSelectors = []string{
		"meta[property='product:price:currency']",
		"meta[itemprop='priceCurrency']",
		"meta[property='og:price:currency']",
	}

	currencySelectors = []string{
		".a-price .a-offscreen",
		".a-price-current .a-price-fraction",
		".a-price .a-price-fraction",
		"#priceblock_ourprice",
		"#priceblock_dealprice",
		".x-price-primary",
		".x-price-approx__price",
		".sellingPrice",
		".current-price",
		".offer-price",
		"[itemprop='price']",
		"[data-price]",
		".price",
		"[class*='price' i]",
		"[id*='price' i]",
		".product-price",
		".regular-price",
		".amount",
		"h2, h3, h4, h5, h6, span, p, a",
	}

	imageSelectors = []string{
		"meta[property='og:image']",
		"meta[itemprop='image']",
		"meta[name='twitter:image']",
		".product-image",
		".main-image",
		"#img-main",
		"[id*='image' i]",
		"[class*='image' i]",
	}

	outOfStockKeywords = []string{"out of stock", "unavailable", "غير متوفر", "نفدت الكمية", "غير متاح حاليا", "نفذ"}
)

// PriceSelectorWait is the selector set the orchestrator waits for before
// extracting; prices are often rendered client-side.
const PriceSelectorWait = `.price, [class*="price" i], [itemprop="price"], .amount, #prcIsum, .a-price, .prc`

// Fields is everything the single-offer path extracts from one page state.
type Fields struct {
	Price    parser.PriceResult
	Currency string
	Image    string
}

type priceStrategy struct {
	name string
	run  func(Document) (parser.PriceResult, bool)
}

type currencyStrategy struct {
	name string
	run  func(Document) (string, bool)
}

// Extractor runs the price, currency and image cascades.
type Extractor struct {
	logger     *slog.Logger
	prices     []priceStrategy
	currencies []currencyStrategy
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{logger: logger.With("component", "extractor")}
	e.prices = []priceStrategy{
		{"meta", e.priceFromMeta},
		{"structured_data", e.priceFromStructuredData},
		{"selectors", e.priceFromSelectors},
	}
	e.currencies = []currencyStrategy{
		{"meta", e.currencyFromMeta},
		{"structured_data", e.currencyFromStructuredData},
		{"selectors", e.currencyFromSelectors},
		{"page_text", e.currencyFromPageText},
	}
	return e
}

// Extract runs all three cascades against the current page state.
func (e *Extractor) Extract(doc Document) Fields {
	return Fields{
		Price:    e.ExtractPrice(doc),
		Currency: e.ExtractCurrency(doc),
		Image:    e.ExtractImage(doc),
	}
}

// ExtractPrice returns the first valid price found. When none is found it
// distinguishes an out-of-stock page (OriginalText set to the localized
// message) from a plain miss (empty OriginalText).
func (e *Extractor) ExtractPrice(doc Document) parser.PriceResult {
	for _, s := range e.prices {
		if res, ok := s.run(doc); ok {
			e.logger.Debug("price found", "strategy", s.name, "price", *res.Price, "text", res.OriginalText)
			return res
		}
	}

	if e.isOutOfStock(doc) {
		e.logger.Debug("no price, product out of stock")
		return parser.PriceResult{OriginalText: models.MsgOutOfStock}
	}

	e.logger.Debug("no price found")
	return parser.PriceResult{}
}

// ExtractCurrency returns an ISO code, or "" when nothing matched.
func (e *Extractor) ExtractCurrency(doc Document) string {
	for _, s := range e.currencies {
		if code, ok := s.run(doc); ok {
			e.logger.Debug("currency found", "strategy", s.name, "currency", code)
			return code
		}
	}
	e.logger.Debug("no currency found")
	return ""
}

// ExtractImage returns the first image URL from meta tags or image elements.
func (e *Extractor) ExtractImage(doc Document) string {
	for _, sel := range imageSelectors {
		for _, attr := range []string{"src", "content"} {
			v, err := doc.Attr(sel, attr)
			if err != nil {
				break
			}
			if v = strings.TrimSpace(v); v != "" {
				e.logger.Debug("image found", "selector", sel)
				return v
			}
		}
	}
	return ""
}

func (e *Extractor) priceFromMeta(doc Document) (parser.PriceResult, bool) {
	for _, sel := range priceMetaSelectors {
		v, err := doc.Attr(sel, "content")
		if err != nil {
			continue
		}
		if res, ok := acceptPrice(v); ok {
			return res, true
		}
	}
	return parser.PriceResult{}, false
}

func (e *Extractor) priceFromStructuredData(doc Document) (parser.PriceResult, bool) {
	blocks, err := doc.StructuredData()
	if err != nil {
		e.logger.Debug("structured data unavailable", "error", err)
		return parser.PriceResult{}, false
	}
	for _, node := range ParseStructuredData(blocks) {
		offer, ok := node.PrimaryOffer()
		if !ok || offer.Price == "" {
			continue
		}
		return acceptPrice(offer.Price)
	}
	return parser.PriceResult{}, false
}

func (e *Extractor) priceFromSelectors(doc Document) (parser.PriceResult, bool) {
	for _, sel := range priceSelectors {
		texts, err := doc.Texts(sel)
		if err != nil {
			continue
		}
		for _, text := range texts {
			if res, ok := acceptPrice(text); ok {
				return res, true
			}
		}
	}
	return parser.PriceResult{}, false
}

func (e *Extractor) isOutOfStock(doc Document) bool {
	text, err := doc.BodyText()
	if err != nil {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range outOfStockKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (e *Extractor) currencyFromMeta(doc Document) (string, bool) {
	for _, sel := range currencyMetaSelectors {
		v, err := doc.Attr(sel, "content")
		if err != nil {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return parser.NormalizeCurrency(v), true
		}
	}
	return "", false
}

func (e *Extractor) currencyFromStructuredData(doc Document) (string, bool) {
	blocks, err := doc.StructuredData()
	if err != nil {
		return "", false
	}
	for _, node := range ParseStructuredData(blocks) {
		offer, ok := node.PrimaryOffer()
		if !ok || offer.PriceCurrency == "" {
			continue
		}
		return parser.NormalizeCurrency(offer.PriceCurrency), true
	}
	return "", false
}

func (e *Extractor) currencyFromSelectors(doc Document) (string, bool) {
	for _, sel := range currencySelectors {
		texts, err := doc.Texts(sel)
		if err != nil {
			continue
		}
		for _, text := range texts {
			if code, ok := parser.FindCurrency(text); ok {
				return code, true
			}
		}
	}
	return "", false
}

func (e *Extractor) currencyFromPageText(doc Document) (string, bool) {
	text, err := doc.BodyText()
	if err != nil {
		return "", false
	}
	return parser.FindCurrency(text)
}

func acceptPrice(text string) (parser.PriceResult, bool) {
	if !parser.IsValidPrice(text) {
		return parser.PriceResult{}, false
	}
	res := parser.ParsePrice(text)
	return res, res.Found()
}
