package variants

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/parser"
)

var (
	ErrNotStorefront = errors.New("url is not a storefront product page")
	ErrNoVariants    = errors.New("storefront product has no usable variants")
)

const (
	stockIn  = "In Stock"
	stockOut = "Out of Stock"
)

// StorefrontClient reads the public "{product url}.json" endpoint exposed by
// hosted storefronts, which returns every variant without rendering the page.
type StorefrontClient struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

func NewStorefrontClient(timeout time.Duration, userAgent string, logger *slog.Logger) *StorefrontClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorefrontClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger.With("component", "storefront"),
	}
}

// IsStorefrontURL reports whether raw looks like a hosted storefront product page.
func IsStorefrontURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, "/products/")
}

// ProductJSONURL appends ".json" to the path, keeping any query string.
func ProductJSONURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid product url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + ".json"
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// Fetch returns the product with one record per priced variant. The top-level
// fields mirror the first variant.
func (c *StorefrontClient) Fetch(ctx context.Context, productURL string) (*models.ScrapedProduct, error) {
	if !IsStorefrontURL(productURL) {
		return nil, ErrNotStorefront
	}

	endpoint, err := ProductJSONURL(productURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("fetching storefront product json", "url", endpoint)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	var payload struct {
		Product *storefrontProduct `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode product json: %w", err)
	}
	if payload.Product == nil || len(payload.Product.Variants) == 0 {
		return nil, ErrNoVariants
	}

	product := payload.Product.toScraped()
	if product == nil {
		return nil, ErrNoVariants
	}

	c.logger.Info("storefront product fetched", "url", productURL, "variants", len(product.Variants))
	return product, nil
}

type storefrontProduct struct {
	Title    string              `json:"title"`
	Currency string              `json:"currency"`
	Images   []imageRef          `json:"images"`
	Variants []storefrontVariant `json:"variants"`
}

type storefrontVariant struct {
	ID            json.RawMessage `json:"id"`
	Title         string          `json:"title"`
	Price         flexString      `json:"price"`
	Available     *bool           `json:"available"`
	FeaturedImage imageRef        `json:"featured_image"`
}

func (p *storefrontProduct) toScraped() *models.ScrapedProduct {
	currency := DefaultCurrency
	if p.Currency != "" {
		currency = parser.NormalizeCurrency(p.Currency)
	}

	var fallbackImage string
	if len(p.Images) > 0 {
		fallbackImage = string(p.Images[0])
	}

	var records []models.ScrapedProduct
	for _, v := range p.Variants {
		id := bytes.TrimSpace(v.ID)
		name := strings.TrimSpace(v.Title)
		if len(id) == 0 || string(id) == "null" || name == "" {
			continue
		}
		res := parser.ParsePrice(string(v.Price))
		if !res.Found() {
			continue
		}

		image := string(v.FeaturedImage)
		if image == "" {
			image = fallbackImage
		}
		stock := stockIn
		if v.Available != nil && !*v.Available {
			stock = stockOut
		}

		records = append(records, models.ScrapedProduct{
			Title:        variantTitle(p.Title, name),
			Price:        res.Price,
			Currency:     currency,
			Image:        image,
			FullPrice:    parser.FullPrice(*res.Price, currency),
			OriginalText: stock,
		})
	}

	if len(records) == 0 {
		return nil
	}

	first := records[0]
	return &models.ScrapedProduct{
		Title:        strings.TrimSpace(p.Title),
		Price:        first.Price,
		Currency:     first.Currency,
		Image:        first.Image,
		FullPrice:    first.FullPrice,
		OriginalText: first.OriginalText,
		Variants:     records,
	}
}

// imageRef accepts a bare URL, {"src": ...} or {"url": ...}, nested.
type imageRef string

func (r *imageRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = imageRef(s)
		return nil
	}

	var obj struct {
		Src json.RawMessage `json:"src"`
		URL string          `json:"url"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil
	}
	if obj.URL != "" {
		*r = imageRef(obj.URL)
		return nil
	}
	if len(obj.Src) > 0 {
		var inner imageRef
		if err := inner.UnmarshalJSON(obj.Src); err != nil {
			return err
		}
		*r = inner
	}
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
	}
	return nil
}
