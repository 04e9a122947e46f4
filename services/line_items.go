package services

import (
	"net/url"
	"strings"

	"hardline-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a price to integer cents, rounding half away from
// zero.
func ToMinorUnits(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

// NormalizeImageURL makes image absolute against origin. Absolute http(s)
// URLs pass through unchanged. An empty result means the line item must be
// sent without an image.
func NormalizeImageURL(image, origin string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return ""
	}
	lower := strings.ToLower(image)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return image
	}
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return ""
	}

	base, err := url.Parse(strings.TrimRight(origin, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return ""
	}
	ref, err := url.Parse(image)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// BuildLineItems converts cart items into Stripe price-data line items.
func BuildLineItems(items []models.CartItem, origin, currency string) []*stripe.CheckoutSessionLineItemParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}

		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if img := NormalizeImageURL(item.Image, origin); img != "" {
			product.Images = []*string{stripe.String(img)}
		}
		if item.ID != "" || item.Category != "" {
			product.Metadata = map[string]string{
				"item_id":  item.ID,
				"category": categoryOrDefault(item.Category),
			}
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(ToMinorUnits(item.Price)),
			},
			Quantity: stripe.Int64(int64(qty)),
		})
	}
	return lineItems
}

func categoryOrDefault(c string) string {
	if c == "" {
		return models.CategoryProduct
	}
	return c
}
