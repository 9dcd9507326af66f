package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLDocument is a static Document backed by goquery. It cannot run scripts
// or click, so GlobalVariants and Click report ErrUnsupported.
type HTMLDocument struct {
	doc *goquery.Document
}

var _ Document = (*HTMLDocument)(nil)

func NewHTMLDocument(html string) (*HTMLDocument, error) {
	return NewHTMLDocumentFromReader(strings.NewReader(html))
}

func NewHTMLDocumentFromReader(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

func (d *HTMLDocument) Title() (string, error) {
	return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
}

func (d *HTMLDocument) Attr(selector, name string) (string, error) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", ErrNotFound
	}
	v, _ := sel.Attr(name)
	return v, nil
}

func (d *HTMLDocument) Texts(selector string) ([]string, error) {
	var texts []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, visibleText(s))
	})
	return texts, nil
}

func (d *HTMLDocument) BodyText() (string, error) {
	body := d.doc.Find("body")
	if body.Length() == 0 {
		return visibleText(d.doc.Selection), nil
	}
	return visibleText(body), nil
}

func (d *HTMLDocument) StructuredData() ([]string, error) {
	var blocks []string
	d.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	return blocks, nil
}

func (d *HTMLDocument) GlobalVariants() ([]map[string]any, error) {
	return nil, ErrUnsupported
}

func (d *HTMLDocument) Click(string, int) error {
	return ErrUnsupported
}

// visibleText approximates innerText: script and style contents are dropped
// and whitespace is collapsed.
func visibleText(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}
