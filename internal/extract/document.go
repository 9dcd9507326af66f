// Package extract derives price, currency and image from arbitrary product
// pages using ordered fallback strategies over a Document.
package extract

import (
	"errors"
)

var (
	// ErrNotFound is returned by Document methods when nothing matches.
	ErrNotFound = errors.New("no matching element")
	// ErrUnsupported is returned when a backend cannot perform an operation,
	// e.g. inspecting script globals from a static HTML parser.
	ErrUnsupported = errors.New("operation not supported by document backend")
)

// Document is the query capability the extraction strategies run against.
// A live browser page and a parsed static HTML document both implement it.
type Document interface {
	// Title returns the document title.
	Title() (string, error)
	// Attr returns attribute name of the first element matching selector.
	// ErrNotFound when no element matches; "" when the attribute is absent.
	Attr(selector, name string) (string, error)
	// Texts returns the visible text of every element matching selector.
	Texts(selector string) ([]string, error)
	// BodyText returns the visible text of the whole page.
	BodyText() (string, error)
	// StructuredData returns the raw contents of every JSON-LD script block.
	StructuredData() ([]string, error)
	// GlobalVariants returns the variants list found on a known script
	// global (window.product, window.shopify, ...). ErrNotFound when no
	// global carries variants, ErrUnsupported without a JS runtime.
	GlobalVariants() ([]map[string]any, error)
	// Click clicks the index-th element matching selector.
	Click(selector string, index int) error
}
