package models

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	SenderRole string    `gorm:"type:varchar(20);not null" json:"sender_role"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
