package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          *uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CustomerEmail   string          `gorm:"type:varchar(320)" json:"customer_email"`
	CustomerName    string          `gorm:"type:varchar(200)" json:"customer_name,omitempty"`
	Currency        string          `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	StripeSessionID string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"stripe_session_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	ProductType string          `gorm:"type:varchar(20);not null" json:"product_type"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
}

// ItemsTotal is Σ price × quantity over the order's items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// ShortID is the first eight characters of the order ID, used in
// notification text.
func (o *Order) ShortID() string {
	return o.ID.String()[:8]
}

// OrderDetail is an order together with the profile of the customer who
// placed it, when one is linked.
type OrderDetail struct {
	Order    *Order   `json:"order"`
	Customer *Profile `json:"customer,omitempty"`
}
