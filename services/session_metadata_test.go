package services

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"hardline-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() models.Identity {
	return models.Identity{UserID: uuid.MustParse("7d1c5a7e-6a43-4c1b-9b0e-1f2d3c4b5a69"), Email: "buyer@example.com", Role: models.RoleUser}
}

func TestSessionMetadata_RoundTrip(t *testing.T) {
	items := []models.CartItem{
		{ID: "a", Name: "Router", Price: decimal.NewFromInt(10), Quantity: 2, Category: models.CategoryRouter},
		{ID: "b", Name: "Setup", Price: decimal.NewFromInt(5), Quantity: 1, Category: models.CategoryService},
	}

	md, err := EncodeSessionMetadata(testIdentity(), "buyer@example.com", models.UserInfo{FullName: "Jane Doe", Phone: "+1 555"}, items)
	require.NoError(t, err)

	assert.Equal(t, "7d1c5a7e-6a43-4c1b-9b0e-1f2d3c4b5a69", md[MetaUserID])
	assert.Equal(t, "buyer@example.com", md[MetaUserEmail])
	assert.Equal(t, "Jane Doe", md[MetaCustomerName])
	assert.Equal(t, "+1 555", md[MetaCustomerPhone])
	assert.Equal(t, "25.00", md[MetaTotal])
	assert.Equal(t, "3", md[MetaItemCount])

	orderItems, total, err := DecodeSessionItems(md)
	require.NoError(t, err)
	require.Len(t, orderItems, 2)
	assert.Equal(t, "Router", orderItems[0].ProductName)
	assert.Equal(t, "router", orderItems[0].ProductType)
	assert.Equal(t, 2, orderItems[0].Quantity)
	assert.True(t, total.Equal(decimal.NewFromInt(25)))

	o := models.Order{Items: orderItems}
	assert.True(t, o.ItemsTotal().Equal(total))
}

func TestSessionMetadata_ChunksLongSnapshots(t *testing.T) {
	var items []models.CartItem
	for i := 0; i < 30; i++ {
		items = append(items, models.CartItem{
			ID:    fmt.Sprintf("item-%d", i),
			Name:  "Ünïcødé product " + strings.Repeat("x", 20),
			Price: decimal.RequireFromString("1.99"),
		})
	}

	md, err := EncodeSessionMetadata(testIdentity(), "buyer@example.com", models.UserInfo{}, items)
	require.NoError(t, err)

	chunks := 0
	for k, v := range md {
		if strings.HasPrefix(k, itemsKeyPrefix) {
			chunks++
			assert.LessOrEqual(t, utf8.RuneCountInString(v), metadataValueLimit)
		}
	}
	assert.Greater(t, chunks, 1)
	assert.LessOrEqual(t, len(md), metadataKeyLimit)

	decoded, total, err := DecodeSessionItems(md)
	require.NoError(t, err)
	assert.Len(t, decoded, 30)
	assert.Equal(t, "59.70", total.StringFixed(2))
}

func TestSessionMetadata_TooLarge(t *testing.T) {
	var items []models.CartItem
	for i := 0; i < 400; i++ {
		items = append(items, models.CartItem{ID: fmt.Sprintf("id-%d", i), Name: strings.Repeat("n", 100), Price: decimal.NewFromInt(1)})
	}
	_, err := EncodeSessionMetadata(testIdentity(), "", models.UserInfo{}, items)
	assert.ErrorIs(t, err, ErrMetadataTooLarge)
}

func TestDecodeSessionItems_Missing(t *testing.T) {
	_, _, err := DecodeSessionItems(map[string]string{MetaTotal: "10.00"})
	assert.ErrorIs(t, err, ErrMetadataNoItems)

	_, _, err = DecodeSessionItems(map[string]string{"items_0": "{broken"})
	assert.Error(t, err)
}
