package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v6/latest/USD":
			_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"SAR":3.75,"EUR":0.9}}`))
		case "/v6/latest/SAR":
			_, _ = w.Write([]byte(`{"result":"success","base_code":"SAR","rates":{"SAR":1,"USD":0.2667}}`))
		case "/v6/latest/XYZ":
			_, _ = w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestConverter(baseURL string) *Converter {
	return NewConverter(Options{BaseURL: baseURL + "/v6/latest", Timeout: 5 * time.Second}, nil)
}

func TestConvert(t *testing.T) {
	var calls int32
	server := newTestServer(t, &calls)
	conv := newTestConverter(server.URL)
	ctx := context.Background()

	t.Run("known pair", func(t *testing.T) {
		v, ok := conv.Convert(ctx, 100, "$", "ر.س")
		assert.True(t, ok)
		assert.InDelta(t, 375.0, v, 1e-9)
	})

	t.Run("same currency needs no lookup", func(t *testing.T) {
		before := atomic.LoadInt32(&calls)
		v, ok := conv.Convert(ctx, 42, "sar", "ريال سعودي")
		assert.True(t, ok)
		assert.Equal(t, 42.0, v)
		assert.Equal(t, before, atomic.LoadInt32(&calls))
	})

	t.Run("unknown source passes through", func(t *testing.T) {
		v, ok := conv.Convert(ctx, 10, "xyz", "USD")
		assert.False(t, ok)
		assert.Equal(t, 10.0, v)
	})

	t.Run("target missing from rates passes through", func(t *testing.T) {
		v, ok := conv.Convert(ctx, 10, "USD", "KWD")
		assert.False(t, ok)
		assert.Equal(t, 10.0, v)
	})

	t.Run("provider failure passes through", func(t *testing.T) {
		v, ok := conv.Convert(ctx, 10, "EUR", "USD")
		assert.False(t, ok)
		assert.Equal(t, 10.0, v)
	})

	t.Run("missing currency passes through", func(t *testing.T) {
		v, ok := conv.Convert(ctx, 10, "", "USD")
		assert.False(t, ok)
		assert.Equal(t, 10.0, v)
	})
}

func TestConvert_NoCaching(t *testing.T) {
	var calls int32
	server := newTestServer(t, &calls)
	conv := newTestConverter(server.URL)

	for i := 0; i < 3; i++ {
		_, ok := conv.Convert(context.Background(), 1, "USD", "EUR")
		require.True(t, ok)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRates_Unsupported(t *testing.T) {
	var calls int32
	server := newTestServer(t, &calls)
	conv := newTestConverter(server.URL)

	_, err := conv.Rates(context.Background(), "XYZ")
	assert.ErrorIs(t, err, ErrUnsupported)

	rates, err := conv.Rates(context.Background(), "SAR")
	require.NoError(t, err)
	assert.InDelta(t, 0.2667, rates["USD"], 1e-9)
}

func TestRates_CancelledContext(t *testing.T) {
	conv := NewConverter(Options{BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001, Burst: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conv.Rates(ctx, "USD")
	assert.Error(t, err)
}
