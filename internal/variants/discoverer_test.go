package variants

import (
	"context"
	"testing"

	"github.com/maltedev/pricewatch/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageDoc is a Document whose content changes on Click, standing in for a
// live page where selecting an option re-renders the price.
type pageDoc struct {
	*extract.HTMLDocument
	states  map[int]string
	globals []map[string]any
	clicks  []int
	t       *testing.T
}

func newPageDoc(t *testing.T, html string) *pageDoc {
	doc, err := extract.NewHTMLDocument(html)
	require.NoError(t, err)
	return &pageDoc{HTMLDocument: doc, t: t}
}

func (p *pageDoc) GlobalVariants() ([]map[string]any, error) {
	if p.globals == nil {
		return nil, extract.ErrNotFound
	}
	return p.globals, nil
}

func (p *pageDoc) Click(_ string, index int) error {
	p.clicks = append(p.clicks, index)
	html, ok := p.states[index]
	if !ok {
		return nil
	}
	doc, err := extract.NewHTMLDocument(html)
	require.NoError(p.t, err)
	p.HTMLDocument = doc
	return nil
}

func newTestDiscoverer() *Discoverer {
	return NewDiscoverer(extract.NewExtractor(nil), 0, nil)
}

func TestFromStructuredData(t *testing.T) {
	doc := newPageDoc(t, `<html><head><script type="application/ld+json">
	{"@type":"Product","name":"Hoodie","image":"https://x/hoodie.jpg","offers":[
	  {"name":" Red ","price":"120.00","priceCurrency":"ر.س"},
	  {"name":"Blue","price":"125.50","priceCurrency":"SAR","image":"https://x/blue.jpg"},
	  {"name":"Green","price":"","priceCurrency":"SAR"},
	  {"name":"Black","price":"99"}
	]}</script></head><body></body></html>`)

	out := newTestDiscoverer().FromStructuredData(doc, "Hoodie Page")
	require.Len(t, out, 2)

	assert.Equal(t, "Hoodie Page - Red", out[0].Title)
	assert.Equal(t, 120.0, *out[0].Price)
	assert.Equal(t, "SAR", out[0].Currency)
	assert.Equal(t, "https://x/hoodie.jpg", out[0].Image)
	assert.Equal(t, "120 SAR", out[0].FullPrice)

	assert.Equal(t, "https://x/blue.jpg", out[1].Image)
	assert.Equal(t, "125.5 SAR", out[1].FullPrice)
	for _, v := range out {
		assert.Empty(t, v.Variants)
	}
}

func TestFromStructuredData_SingleOfferIsNotVariantList(t *testing.T) {
	doc := newPageDoc(t, `<html><head><script type="application/ld+json">
	{"@type":"Product","name":"Mug","offers":{"name":"Mug","price":"12","priceCurrency":"USD"}}
	</script></head></html>`)

	assert.Empty(t, newTestDiscoverer().FromStructuredData(doc, "Mug"))
}

func TestFromPageState_Globals(t *testing.T) {
	doc := newPageDoc(t, `<html><body></body></html>`)
	doc.globals = []map[string]any{
		{"title": "38", "price": "45.00", "image": map[string]any{"src": "https://x/38.jpg"}},
		{"title": "39", "price": 47.5, "currency": "€"},
		{"title": "", "price": "10"},
		{"title": "40"},
	}

	out := newTestDiscoverer().FromPageState(context.Background(), doc, "Sneaker")
	require.Len(t, out, 2)

	assert.Equal(t, "Sneaker - 38", out[0].Title)
	assert.Equal(t, "USD", out[0].Currency)
	assert.Equal(t, "https://x/38.jpg", out[0].Image)
	assert.Equal(t, 47.5, *out[1].Price)
	assert.Equal(t, "EUR", out[1].Currency)
	assert.Empty(t, doc.clicks)
}

func TestFromPageState_Clicks(t *testing.T) {
	base := `<html><body>
		<button data-variant-id="1">Small</button>
		<button data-variant-id="2">Large</button>
		<button data-variant-id="3">  </button>
	</body></html>`
	doc := newPageDoc(t, base)
	doc.states = map[int]string{
		0: `<html><body><button data-variant-id="1">Small</button><span class="price">$10.00</span></body></html>`,
		1: `<html><body><button data-variant-id="2">Large</button><span class="price">$14.00</span></body></html>`,
		2: `<html><body><span class="price">$16.00</span></body></html>`,
	}

	out := newTestDiscoverer().FromPageState(context.Background(), doc, "Tee")
	require.Len(t, out, 3)
	assert.Equal(t, []int{0, 1, 2}, doc.clicks)

	assert.Equal(t, "Tee - Small", out[0].Title)
	assert.Equal(t, 10.0, *out[0].Price)
	assert.Equal(t, "USD", out[0].Currency)
	assert.Equal(t, "$10.00", out[0].OriginalText)
	assert.Equal(t, "Tee - Large", out[1].Title)
	assert.Equal(t, 14.0, *out[1].Price)
	assert.Equal(t, "Tee - Unknown Variant", out[2].Title)
}

func TestFromPageState_SkipsUnpricedClicks(t *testing.T) {
	doc := newPageDoc(t, `<html><body><div class="size-options">S</div><div class="size-options">M</div></body></html>`)
	doc.states = map[int]string{
		0: `<html><body><div class="size-options">S</div></body></html>`,
		1: `<html><body><div class="size-options">M</div><span class="price">20 SAR</span></body></html>`,
	}

	out := newTestDiscoverer().FromPageState(context.Background(), doc, "Cap")
	require.Len(t, out, 1)
	assert.Equal(t, "Cap - M", out[0].Title)
	assert.Equal(t, "SAR", out[0].Currency)
}

func TestFromPageState_StaticDocument(t *testing.T) {
	doc, err := extract.NewHTMLDocument(`<html><body><div class="size-options">S</div></body></html>`)
	require.NoError(t, err)

	assert.Empty(t, newTestDiscoverer().FromPageState(context.Background(), doc, "Cap"))
}
