package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ريال سعودي", "SAR"},
		{"ر.س", "SAR"},
		{"د.ع", "IQD"},
		{"Iraqi Dinar", "IQD"},
		{"iraqi dinar", "IQD"},
		{"$", "USD"},
		{"€", "EUR"},
		{"£", "GBP"},
		{"¥", "JPY"},
		{"₩", "KRW"},
		{"usd", "USD"},
		{"  EUR  ", "EUR"},
		{"RMB", "CNY"},
		{"درهم إماراتي", "AED"},
		{"xyz", "XYZ"},
		{" btc ", "BTC"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCurrency(tt.input))
		})
	}
}

func TestIsKnownCurrency(t *testing.T) {
	assert.True(t, IsKnownCurrency("sar"))
	assert.True(t, IsKnownCurrency("دينار"))
	assert.False(t, IsKnownCurrency("xyz"))
}

func TestFindCurrency(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		found    bool
	}{
		{"symbol", "Total: $45.00", "USD", true},
		{"longest alias wins", "السعر 12 دينار كويتي", "KWD", true},
		{"canadian dollar symbol", "C$ 19.99", "CAD", true},
		{"arabic abbreviation", "٢٥٠ ر.س", "SAR", true},
		{"iso code as word", "price 100 AED incl. VAT", "AED", true},
		{"iso code inside word ignored", "ships across europe", "", false},
		{"leftmost currency wins", "$100 (approx. 375 ريال سعودي)", "USD", true},
		{"leftmost arabic before code", "375 ر.س ~ 100 USD", "SAR", true},
		{"plural name", "100 dollars", "USD", true},
		{"plural euro", "20 Euros only", "EUR", true},
		{"iso code takes no plural", "30 usds", "", false},
		{"nothing", "no money here", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := FindCurrency(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, code)
		})
	}
}
