package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hardline-backend/models"

	"github.com/shopspring/decimal"
)

// Stripe caps metadata at 50 keys and 500 characters per value.
const (
	metadataValueLimit = 500
	metadataKeyLimit   = 50
	itemsKeyPrefix     = "items_"

	MetaUserID        = "user_id"
	MetaUserEmail     = "user_email"
	MetaCustomerName  = "customer_name"
	MetaCustomerPhone = "customer_phone"
	MetaTotal         = "total"
	MetaItemCount     = "item_count"
)

var (
	ErrMetadataTooLarge = errors.New("cart too large for checkout metadata")
	ErrMetadataNoItems  = errors.New("checkout metadata has no items")
)

// metadataItem is the compact item snapshot stored on the session.
type metadataItem struct {
	ID       string `json:"i"`
	Name     string `json:"n"`
	Category string `json:"c"`
	Price    string `json:"p"`
	Quantity int    `json:"q"`
}

// EncodeSessionMetadata builds the session metadata for a cart snapshot.
// The item list is JSON chunked across items_0..items_n.
func EncodeSessionMetadata(identity models.Identity, email string, info models.UserInfo, items []models.CartItem) (map[string]string, error) {
	snapshot := make([]metadataItem, 0, len(items))
	total := decimal.Zero
	count := 0
	for _, it := range items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		snapshot = append(snapshot, metadataItem{
			ID:       it.ID,
			Name:     it.Name,
			Category: categoryOrDefault(it.Category),
			Price:    it.Price.StringFixed(2),
			Quantity: qty,
		})
		total = total.Add(it.Price.Round(2).Mul(decimal.NewFromInt(int64(qty))))
		count += qty
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	md := map[string]string{
		MetaUserID:        identity.UserID.String(),
		MetaUserEmail:     email,
		MetaCustomerName:  truncateRunes(info.FullName, metadataValueLimit),
		MetaCustomerPhone: truncateRunes(info.Phone, metadataValueLimit),
		MetaTotal:         total.StringFixed(2),
		MetaItemCount:     strconv.Itoa(count),
	}

	chunks := chunkRunes(string(raw), metadataValueLimit)
	if len(md)+len(chunks) > metadataKeyLimit {
		return nil, ErrMetadataTooLarge
	}
	for i, c := range chunks {
		md[fmt.Sprintf("%s%d", itemsKeyPrefix, i)] = c
	}
	return md, nil
}

// DecodeSessionItems rebuilds order items and the total recorded at
// checkout from session metadata.
func DecodeSessionItems(md map[string]string) ([]models.OrderItem, decimal.Decimal, error) {
	var b strings.Builder
	for i := 0; ; i++ {
		chunk, ok := md[fmt.Sprintf("%s%d", itemsKeyPrefix, i)]
		if !ok {
			break
		}
		b.WriteString(chunk)
	}
	if b.Len() == 0 {
		return nil, decimal.Zero, ErrMetadataNoItems
	}

	var snapshot []metadataItem
	if err := json.Unmarshal([]byte(b.String()), &snapshot); err != nil {
		return nil, decimal.Zero, fmt.Errorf("decode items metadata: %w", err)
	}
	if len(snapshot) == 0 {
		return nil, decimal.Zero, ErrMetadataNoItems
	}

	items := make([]models.OrderItem, 0, len(snapshot))
	sum := decimal.Zero
	for _, s := range snapshot {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item %q price: %w", s.Name, err)
		}
		if s.Quantity < 1 {
			s.Quantity = 1
		}
		items = append(items, models.OrderItem{
			ProductName: s.Name,
			ProductType: categoryOrDefault(s.Category),
			Price:       price,
			Quantity:    s.Quantity,
		})
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(s.Quantity))))
	}

	total := sum
	if v, ok := md[MetaTotal]; ok {
		if parsed, err := decimal.NewFromString(v); err == nil {
			total = parsed
		}
	}
	return items, total, nil
}

func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	var chunks []string
	for len(runes) > 0 {
		n := size
		if len(runes) < n {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
