// Package scraper drives one browser session per product URL and composes
// variant discovery and field extraction into a single scrape result.
package scraper

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/maltedev/pricewatch/internal/extract"
	"github.com/maltedev/pricewatch/internal/models"
)

var (
	ErrInvalidURL = errors.New("invalid product url")
)

// Session is a single isolated browser session. browser.Session implements it.
type Session interface {
	// Navigate performs one page load attempt.
	Navigate(url string) error
	// WaitFor waits for an element matching selector to be attached.
	WaitFor(selector string, timeout time.Duration) error
	Document() extract.Document
	Close() error
}

// SessionFactory launches a fresh Session; the caller closes it.
type SessionFactory func(ctx context.Context) (Session, error)

// Storefront fetches a product through a storefront's JSON endpoint.
type Storefront interface {
	Fetch(ctx context.Context, productURL string) (*models.ScrapedProduct, error)
}

type Options struct {
	MaxAttempts        int
	RetryDelay         time.Duration
	PriceWait          time.Duration
	SettleDelay        time.Duration
	VariantClickSettle time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:        3,
		RetryDelay:         2 * time.Second,
		PriceWait:          8 * time.Second,
		SettleDelay:        3 * time.Second,
		VariantClickSettle: time.Second,
	}
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

type state string

const (
	stateInit       state = "init"
	stateNavigating state = "navigating"
	stateLoaded     state = "loaded"
	stateExtracting state = "extracting"
	stateDone       state = "done"
	stateFailed     state = "failed"
)
