package services

import (
	"testing"

	"hardline-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeImageURL(t *testing.T) {
	cases := []struct {
		name, image, origin, want string
	}{
		{"relative root path", "/foo.png", "https://example.com", "https://example.com/foo.png"},
		{"relative without slash", "images/router.jpg", "https://example.com/", "https://example.com/images/router.jpg"},
		{"absolute https untouched", "https://cdn.example.com/a.png?v=2", "https://example.com", "https://cdn.example.com/a.png?v=2"},
		{"absolute http untouched", "http://cdn.example.com/a.png", "https://example.com", "http://cdn.example.com/a.png"},
		{"empty omitted", "", "https://example.com", ""},
		{"whitespace omitted", "   ", "https://example.com", ""},
		{"data uri omitted", "data:image/png;base64,AAAA", "https://example.com", ""},
		{"no usable origin", "/foo.png", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeImageURL(tc.image, tc.origin))
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.NewFromInt(10)))
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1001), ToMinorUnits(decimal.RequireFromString("10.005")))
	assert.Equal(t, int64(0), ToMinorUnits(decimal.Zero))
}

func TestBuildLineItems(t *testing.T) {
	items := []models.CartItem{
		{ID: "a", Name: "Router", Price: decimal.RequireFromString("10"), Image: "/router.png", Quantity: 2, Category: models.CategoryRouter},
		{ID: "b", Name: "Install", Price: decimal.RequireFromString("5.5")},
	}

	got := BuildLineItems(items, "https://example.com", "usd")
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, int64(1000), *first.PriceData.UnitAmount)
	assert.Equal(t, int64(2), *first.Quantity)
	assert.Equal(t, "usd", *first.PriceData.Currency)
	require.Len(t, first.PriceData.ProductData.Images, 1)
	assert.Equal(t, "https://example.com/router.png", *first.PriceData.ProductData.Images[0])
	assert.Equal(t, "router", first.PriceData.ProductData.Metadata["category"])

	second := got[1]
	assert.Equal(t, int64(550), *second.PriceData.UnitAmount)
	assert.Equal(t, int64(1), *second.Quantity, "quantity defaults to 1")
	assert.Nil(t, second.PriceData.ProductData.Images, "no image field without an image")
	assert.Equal(t, "product", second.PriceData.ProductData.Metadata["category"])
}
