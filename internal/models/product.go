package models

import (
	"encoding/json"
	"fmt"
)

// Localized user-facing messages. The storefronts this tool targets are mostly
// Arabic-language, so messages surfaced to sellers are Arabic.
const (
	MsgOutOfStock     = "المنتج غير متوفر"
	MsgInvalidURL     = "الرابط الذي أدخلته غير صحيح. يرجى التحقق من الرابط والمحاولة مرة أخرى."
	MsgUnreachable    = "فشل في الوصول إلى الرابط. قد يكون الرابط غير صحيح أو الموقع لا يستجيب. يرجى المحاولة لاحقاً."
	MsgUnexpected     = "حدث خطأ غير متوقع أثناء معالجة طلبك. يرجى إرسال تقرير بالمشكلة لتتم معالجتها."
	MsgUnknownProduct = "Unknown Product"
	MsgUnknownVariant = "Unknown Variant"
)

// ScrapedProduct is the result of scraping one product page. Price is nil when
// no usable price was found; in that case Variants is always empty.
type ScrapedProduct struct {
	Title        string           `json:"title"`
	Price        *float64         `json:"price"`
	Currency     string           `json:"currency"`
	Image        string           `json:"image"`
	FullPrice    string           `json:"fullPrice"`
	OriginalText string           `json:"originalText"`
	Variants     []ScrapedProduct `json:"variants"`
}

// MarshalJSON writes missing currency, image and originalText as null and a
// missing variant list as [], so "not found" is explicit on the wire.
func (p ScrapedProduct) MarshalJSON() ([]byte, error) {
	type plain ScrapedProduct
	variants := p.Variants
	if variants == nil {
		variants = []ScrapedProduct{}
	}
	return json.Marshal(struct {
		plain
		Currency     *string          `json:"currency"`
		Image        *string          `json:"image"`
		OriginalText *string          `json:"originalText"`
		Variants     []ScrapedProduct `json:"variants"`
	}{
		plain:        plain(p),
		Currency:     nullable(p.Currency),
		Image:        nullable(p.Image),
		OriginalText: nullable(p.OriginalText),
		Variants:     variants,
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// HasPrice reports whether a usable price was extracted.
func (p *ScrapedProduct) HasPrice() bool {
	return p != nil && p.Price != nil
}

// PriceValue returns the price or 0 when absent.
func (p *ScrapedProduct) PriceValue() float64 {
	if !p.HasPrice() {
		return 0
	}
	return *p.Price
}

// Records returns the variants when present, otherwise the product itself.
// Callers persisting scrape output create one record per entry.
func (p *ScrapedProduct) Records() []ScrapedProduct {
	if len(p.Variants) > 0 {
		return p.Variants
	}
	return []ScrapedProduct{*p}
}

// Normalize enforces the "no price, no variants" invariant.
func (p *ScrapedProduct) Normalize() {
	if p.Price == nil {
		p.Variants = nil
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

type ScrapeErrorKind string

const (
	ErrKindInvalidURL  ScrapeErrorKind = "invalid_url"
	ErrKindUnreachable ScrapeErrorKind = "unreachable"
	ErrKindUnexpected  ScrapeErrorKind = "unexpected"
)

// ScrapeError is the only error shape returned by the scrape orchestrator.
type ScrapeError struct {
	Kind            ScrapeErrorKind `json:"kind"`
	Message         string          `json:"error"`
	IsScrapingError bool            `json:"isScrapingError"`
	URL             string          `json:"url,omitempty"`
	Cause           error           `json:"-"`
}

func (e *ScrapeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scrape %s: %s: %v", e.Kind, e.URL, e.Cause)
	}
	return fmt.Sprintf("scrape %s: %s", e.Kind, e.URL)
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

func NewScrapeError(kind ScrapeErrorKind, url string, cause error) *ScrapeError {
	msg := MsgUnexpected
	switch kind {
	case ErrKindInvalidURL:
		msg = MsgInvalidURL
	case ErrKindUnreachable:
		msg = MsgUnreachable
	}
	return &ScrapeError{
		Kind:            kind,
		Message:         msg,
		IsScrapingError: true,
		URL:             url,
		Cause:           cause,
	}
}
