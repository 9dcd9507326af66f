// Package variants finds per-option (size, colour, ...) offers on a product
// page and turns each into its own scraped record.
package variants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/pricewatch/internal/extract"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/parser"
)

// DefaultCurrency is assumed when a variant source carries no currency.
const DefaultCurrency = "USD"

// selectors are tried in order; the first one whose elements yield priced
// variants wins.
var selectors = []string{
	"#product-variants",
	".variant-selector",
	".size-options",
	".color-options",
	"[data-variant-id]",
	"[data-product-variant]",
	`[aria-label="Select color"]`,
	`[aria-label="Select size"]`,
}

// Discoverer runs the in-page variant strategies. The storefront JSON
// strategy lives on StorefrontClient because it needs no page.
type Discoverer struct {
	logger      *slog.Logger
	extractor   *extract.Extractor
	clickSettle time.Duration
}

func NewDiscoverer(extractor *extract.Extractor, clickSettle time.Duration, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		logger:      logger.With("component", "variants"),
		extractor:   extractor,
		clickSettle: clickSettle,
	}
}

// FromStructuredData emits one record per entry of a Product's JSON-LD offers
// array. A single offer object is a single-offer page, not a variant list.
func (d *Discoverer) FromStructuredData(doc extract.Document, baseTitle string) []models.ScrapedProduct {
	blocks, err := doc.StructuredData()
	if err != nil {
		d.logger.Debug("structured data unavailable", "error", err)
		return nil
	}

	product, ok := extract.FirstProduct(extract.ParseStructuredData(blocks))
	if !ok || !product.OffersList {
		return nil
	}

	var out []models.ScrapedProduct
	for _, offer := range product.Offers {
		name := strings.TrimSpace(offer.Name)
		if name == "" || offer.PriceCurrency == "" {
			continue
		}
		res := parser.ParsePrice(offer.Price)
		if !res.Found() {
			continue
		}
		image := offer.Image
		if image == "" {
			image = product.Image
		}
		currency := parser.NormalizeCurrency(offer.PriceCurrency)
		out = append(out, models.ScrapedProduct{
			Title:     variantTitle(baseTitle, name),
			Price:     res.Price,
			Currency:  currency,
			Image:     image,
			FullPrice: parser.FullPrice(*res.Price, currency),
		})
	}

	d.logger.Debug("structured data variants", "count", len(out))
	return out
}

// FromPageState reads variants from known script globals and, failing that,
// clicks through variant selector elements re-extracting after each click.
func (d *Discoverer) FromPageState(ctx context.Context, doc extract.Document, baseTitle string) []models.ScrapedProduct {
	if out := d.fromGlobals(doc, baseTitle); len(out) > 0 {
		return out
	}
	return d.fromClicks(ctx, doc, baseTitle)
}

func (d *Discoverer) fromGlobals(doc extract.Document, baseTitle string) []models.ScrapedProduct {
	raw, err := doc.GlobalVariants()
	if err != nil {
		if !errors.Is(err, extract.ErrNotFound) && !errors.Is(err, extract.ErrUnsupported) {
			d.logger.Warn("reading global variants failed", "error", err)
		}
		return nil
	}

	var out []models.ScrapedProduct
	for _, v := range raw {
		title := strings.TrimSpace(stringField(v, "title"))
		if title == "" {
			continue
		}
		res := parser.ParsePrice(stringField(v, "price"))
		if !res.Found() {
			continue
		}
		currency := DefaultCurrency
		if c := stringField(v, "currency"); c != "" {
			currency = parser.NormalizeCurrency(c)
		}
		var image string
		if img, ok := v["image"].(map[string]any); ok {
			image = stringField(img, "src")
		}
		out = append(out, models.ScrapedProduct{
			Title:     variantTitle(baseTitle, title),
			Price:     res.Price,
			Currency:  currency,
			Image:     image,
			FullPrice: parser.FullPrice(*res.Price, currency),
		})
	}

	d.logger.Debug("global state variants", "count", len(out))
	return out
}

func (d *Discoverer) fromClicks(ctx context.Context, doc extract.Document, baseTitle string) []models.ScrapedProduct {
	for _, sel := range selectors {
		labels, err := doc.Texts(sel)
		if err != nil || len(labels) == 0 {
			continue
		}

		var out []models.ScrapedProduct
		for i, label := range labels {
			if err := doc.Click(sel, i); err != nil {
				if errors.Is(err, extract.ErrUnsupported) {
					return nil
				}
				d.logger.Debug("variant click failed", "selector", sel, "index", i, "error", err)
				continue
			}
			if err := wait(ctx, d.clickSettle); err != nil {
				return out
			}

			fields := d.extractor.Extract(doc)
			if !fields.Price.Found() {
				continue
			}

			name := strings.TrimSpace(label)
			if name == "" {
				name = models.MsgUnknownVariant
			}
			out = append(out, models.ScrapedProduct{
				Title:        variantTitle(baseTitle, name),
				Price:        fields.Price.Price,
				Currency:     fields.Currency,
				Image:        fields.Image,
				FullPrice:    parser.FullPrice(*fields.Price.Price, fields.Currency),
				OriginalText: fields.Price.OriginalText,
			})
		}

		if len(out) > 0 {
			d.logger.Debug("clicked variants", "selector", sel, "count", len(out))
			return out
		}
	}
	return nil
}

func variantTitle(base, name string) string {
	return fmt.Sprintf("%s - %s", base, name)
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return parser.FormatPlain(v)
	case int, int64:
		return fmt.Sprint(v)
	}
	return ""
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
