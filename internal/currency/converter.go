// Package currency converts competitor prices into the seller's currency
// using a public exchange-rate API keyed by base currency.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maltedev/pricewatch/internal/parser"
)

const DefaultBaseURL = "https://open.er-api.com/v6/latest"

var ErrUnsupported = errors.New("currency not supported by rate provider")

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond and Burst throttle calls to the rate provider.
	RequestsPerSecond float64
	Burst             int
}

func DefaultOptions() Options {
	return Options{
		BaseURL:           DefaultBaseURL,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 2,
		Burst:             5,
	}
}

// Converter looks rates up on every call; nothing is cached.
type Converter struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

func NewConverter(opts Options, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return &Converter{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      logger.With("component", "currency"),
	}
}

type ratesResponse struct {
	Result    string             `json:"result"`
	BaseCode  string             `json:"base_code"`
	ErrorType string             `json:"error-type"`
	Rates     map[string]float64 `json:"rates"`
}

// Rates fetches the rate table for base. ErrUnsupported when the provider
// does not know base.
func (c *Converter) Rates(ctx context.Context, base string) (map[string]float64, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, base)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}
	if body.Result == "error" {
		if body.ErrorType == "unsupported-code" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, base)
		}
		return nil, fmt.Errorf("rate provider error: %s", body.ErrorType)
	}
	return body.Rates, nil
}

// Convert returns amount expressed in to. When either currency is unknown to
// the provider or the lookup fails, the amount passes through unchanged and
// converted is false.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (value float64, converted bool) {
	src := parser.NormalizeCurrency(from)
	dst := parser.NormalizeCurrency(to)
	if src == dst {
		return amount, true
	}
	if src == "" || dst == "" {
		c.logger.Warn("missing currency, skipping conversion", "from", from, "to", to)
		return amount, false
	}

	rates, err := c.Rates(ctx, src)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			c.logger.Warn("currency not supported, returning original amount", "from", src, "to", dst)
		} else {
			c.logger.Error("currency conversion failed, returning original amount", "from", src, "to", dst, "error", err)
		}
		return amount, false
	}

	r, ok := rates[dst]
	if !ok || r <= 0 {
		c.logger.Warn("currency not supported, returning original amount", "from", src, "to", dst)
		return amount, false
	}

	c.logger.Debug("converted price", "from", src, "to", dst, "rate", r, "amount", amount)
	return amount * r, true
}
