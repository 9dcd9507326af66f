// Package storage keeps a JSON-file watch list of product URLs and the last
// scrape outcome for each, used by the scrape CLI in batch mode.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/pricewatch/internal/models"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusScraped Status = "scraped"
	StatusNoPrice Status = "no_price"
	StatusFailed  Status = "failed"
)

type WatchedURL struct {
	URL          string    `json:"url"`
	Seq          int       `json:"seq"`
	Title        string    `json:"title,omitempty"`
	Price        *float64  `json:"price,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	FullPrice    string    `json:"fullPrice,omitempty"`
	VariantCount int       `json:"variantCount,omitempty"`
	Status       Status    `json:"status"`
	AddedAt      time.Time `json:"added_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Error        string    `json:"error,omitempty"`
}

// WatchList is safe for concurrent use. Every mutation is flushed to disk.
type WatchList struct {
	mu       sync.RWMutex
	entries  map[string]*WatchedURL
	filename string
}

func NewWatchList(filename string) (*WatchList, error) {
	wl := &WatchList{
		entries:  make(map[string]*WatchedURL),
		filename: filename,
	}

	if err := wl.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return wl, nil
}

// Add registers urls as pending. URLs already on the list are left as they are.
func (wl *WatchList) Add(urls ...string) error {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := time.Now()
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, exists := wl.entries[u]; exists {
			continue
		}
		wl.entries[u] = &WatchedURL{
			URL:       u,
			Status:    StatusPending,
			AddedAt:   now,
			UpdatedAt: now,
		}
	}

	return wl.save()
}

func (wl *WatchList) Get(url string) (WatchedURL, bool) {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	e, ok := wl.entries[url]
	if !ok {
		return WatchedURL{}, false
	}
	return *e, true
}

// URLs returns every watched URL in insertion order.
func (wl *WatchList) URLs() []string {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	list := make([]*WatchedURL, 0, len(wl.entries))
	for _, e := range wl.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Seq == list[j].Seq {
			return list[i].URL < list[j].URL
		}
		return list[i].Seq < list[j].Seq
	})

	urls := make([]string, len(list))
	for i, e := range list {
		urls[i] = e.URL
	}
	return urls
}

// RecordResult stores the outcome of scraping url.
func (wl *WatchList) RecordResult(url string, product *models.ScrapedProduct, scrapeErr error) error {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	e, ok := wl.entries[url]
	if !ok {
		return fmt.Errorf("url not on watch list: %s", url)
	}

	e.UpdatedAt = time.Now()
	e.Error = ""
	switch {
	case scrapeErr != nil:
		e.Status = StatusFailed
		e.Error = scrapeErr.Error()
	case product == nil || !product.HasPrice():
		e.Status = StatusNoPrice
		e.Price = nil
		if product != nil {
			e.Title = product.Title
			e.FullPrice = product.FullPrice
		}
	default:
		e.Status = StatusScraped
		e.Title = product.Title
		e.Price = product.Price
		e.Currency = product.Currency
		e.FullPrice = product.FullPrice
		e.VariantCount = len(product.Variants)
	}

	return wl.save()
}

func (wl *WatchList) Stats() map[Status]int {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	stats := make(map[Status]int)
	for _, e := range wl.entries {
		stats[e.Status]++
	}
	return stats
}

func (wl *WatchList) Len() int {
	wl.mu.RLock()
	defer wl.mu.RUnlock()
	return len(wl.entries)
}

func (wl *WatchList) nextSeq() int {
	max := 0
	for _, e := range wl.entries {
		if e.Seq > max {
			max = e.Seq
		}
	}
	return max + 1
}

func (wl *WatchList) save() error {
	data, err := json.MarshalIndent(wl.entries, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := wl.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, wl.filename)
}

func (wl *WatchList) Load() error {
	data, err := os.ReadFile(wl.filename)
	if err != nil {
		return err
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()
	return json.Unmarshal(data, &wl.entries)
}
