package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryService = "service"
	CategoryHeadset = "headset"
	CategoryRouter  = "router"
	CategoryProduct = "product"
)

type CartItem struct {
	ID       string          `json:"id" binding:"required" validate:"required,max=128"`
	Name     string          `json:"name" binding:"required" validate:"required,max=200"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty" validate:"max=2048"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category,omitempty" validate:"omitempty,oneof=service headset router product"`
}

// LineTotal is price × quantity, unrounded.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the in-progress selection of one owner. Quantities are always >= 1
// for items present in the cart.
type Cart struct {
	OwnerID   string     `json:"owner_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCart(ownerID string) *Cart {
	return &Cart{OwnerID: ownerID, Items: []CartItem{}}
}

// AddItem increments the quantity of an item already in the cart by one, or
// appends the item with quantity 1.
func (c *Cart) AddItem(item CartItem) {
	for i := range c.Items {
		if c.Items[i].ID == item.ID {
			c.Items[i].Quantity++
			return
		}
	}
	item.Quantity = 1
	c.Items = append(c.Items, item)
}

// UpdateQuantity sets the quantity of id; anything below 1 removes the item.
func (c *Cart) UpdateQuantity(id string, quantity int) {
	if quantity < 1 {
		c.RemoveItem(id)
		return
	}
	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items[i].Quantity = quantity
			return
		}
	}
}

func (c *Cart) RemoveItem(id string) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is Σ price × quantity. Rounding is left to display.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}
