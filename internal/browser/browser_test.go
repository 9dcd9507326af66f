package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 45*time.Second, opts.NavigationTimeout)
	assert.Equal(t, DefaultUserAgent, opts.UserAgent)
	assert.Equal(t, "en-US,en;q=0.9,ar;q=0.8", opts.AcceptLanguage)
	assert.ElementsMatch(t, []string{"image", "stylesheet", "font"}, opts.BlockedResources)
}

func TestStatusError(t *testing.T) {
	var err error = &StatusError{URL: "https://shop.test/p", Status: 503}

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 503, statusErr.Status)
	assert.Contains(t, err.Error(), "503")
}
