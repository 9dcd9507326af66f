package browser

import (
	"fmt"
	"strings"

	"github.com/maltedev/pricewatch/internal/extract"
	"github.com/playwright-community/playwright-go"
)

const bodyTextScript = `() => document.body ? document.body.innerText : ""`

// globalVariantsScript returns the variants array of the first known
// storefront global that carries one.
const globalVariantsScript = `() => {
	for (const key of ["product", "variants", "shopify", "dataLayer"]) {
		const v = window[key];
		if (v && Array.isArray(v.variants)) {
			return JSON.parse(JSON.stringify(v.variants));
		}
	}
	return null;
}`

// PageDocument adapts a live playwright page to extract.Document.
type PageDocument struct {
	page playwright.Page
}

var _ extract.Document = (*PageDocument)(nil)

func NewPageDocument(page playwright.Page) *PageDocument {
	return &PageDocument{page: page}
}

func (s *Session) Document() extract.Document {
	return NewPageDocument(s.page)
}

func (d *PageDocument) Title() (string, error) {
	title, err := d.page.Title()
	if err != nil {
		return "", fmt.Errorf("failed to get page title: %w", err)
	}
	return strings.TrimSpace(title), nil
}

func (d *PageDocument) Attr(selector, name string) (string, error) {
	loc := d.page.Locator(selector).First()
	count, err := loc.Count()
	if err != nil {
		return "", fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if count == 0 {
		return "", extract.ErrNotFound
	}
	v, err := loc.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s of %q: %w", name, selector, err)
	}
	return v, nil
}

func (d *PageDocument) Texts(selector string) ([]string, error) {
	texts, err := d.page.Locator(selector).AllInnerTexts()
	if err != nil {
		return nil, fmt.Errorf("failed to read text of %q: %w", selector, err)
	}
	return texts, nil
}

func (d *PageDocument) BodyText() (string, error) {
	v, err := d.page.Evaluate(bodyTextScript)
	if err != nil {
		return "", fmt.Errorf("failed to read body text: %w", err)
	}
	s, _ := v.(string)
	return s, nil
}

func (d *PageDocument) StructuredData() ([]string, error) {
	blocks, err := d.page.Locator(`script[type="application/ld+json"]`).AllTextContents()
	if err != nil {
		return nil, fmt.Errorf("failed to read structured data: %w", err)
	}
	return blocks, nil
}

func (d *PageDocument) GlobalVariants() ([]map[string]any, error) {
	v, err := d.page.Evaluate(globalVariantsScript)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate globals: %w", err)
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, extract.ErrNotFound
	}

	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *PageDocument) Click(selector string, index int) error {
	if err := d.page.Locator(selector).Nth(index).Click(); err != nil {
		return fmt.Errorf("failed to click %q[%d]: %w", selector, index, err)
	}
	return nil
}
